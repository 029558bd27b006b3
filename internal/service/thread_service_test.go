package service

import (
	"context"
	"testing"

	"bookclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThreadService(threads *threadRepoStub, pub Publisher) *ThreadService {
	return NewThreadService(noopGroupRepo(), threads, noopUserRepo(), pub)
}

func TestThreadService_NonMembersAreRejected(t *testing.T) {
	t.Parallel()

	svc := newThreadService(noopThreadRepo(), nil)
	ctx := context.Background()
	const outsider = 50

	_, err := svc.ListThreads(ctx, 7, outsider, 20, 0)
	assertForbiddenError(t, err)
	_, err = svc.GetThread(ctx, 7, 11, outsider)
	assertForbiddenError(t, err)
	_, err = svc.CreateThread(ctx, CreateThreadInput{GroupID: 7, UserID: outsider, Content: "hi"})
	assertForbiddenError(t, err)
	_, err = svc.ListReplies(ctx, 7, 11, outsider, 20, 0)
	assertForbiddenError(t, err)
	_, err = svc.LikeThread(ctx, 7, 11, outsider)
	assertForbiddenError(t, err)
	_, err = svc.ListLikes(ctx, 7, 11, outsider)
	assertForbiddenError(t, err)
}

func TestThreadService_ListThreadsMarksLiked(t *testing.T) {
	t.Parallel()

	repo := noopThreadRepo()
	repo.listFn = func(_ context.Context, gid uint, _, _ int) ([]models.Thread, error) {
		return []models.Thread{{ID: 1, GroupID: gid}, {ID: 2, GroupID: gid}}, nil
	}
	repo.likedThreadIDsFn = func(_ context.Context, uid uint, ids []uint) ([]uint, error) {
		assert.Equal(t, uint(3), uid)
		assert.Equal(t, []uint{1, 2}, ids)
		return []uint{2}, nil
	}
	svc := newThreadService(repo, nil)

	threads, err := svc.ListThreads(context.Background(), 7, 3, 0, 0)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.False(t, threads[0].Liked)
	assert.True(t, threads[1].Liked)
}

func TestThreadService_CreateThread(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := newThreadService(noopThreadRepo(), pub)

	_, err := svc.CreateThread(context.Background(), CreateThreadInput{GroupID: 7, UserID: 3, Content: "   "})
	assertValidationError(t, err)

	thread, err := svc.CreateThread(context.Background(), CreateThreadInput{GroupID: 7, UserID: 3, Content: " Part one "})
	require.NoError(t, err)
	assert.Equal(t, "Part one", thread.Content)
	assert.Equal(t, "reader", thread.AuthorName)
	assert.Equal(t, []string{"groups/7/threads"}, pub.Paths())
}

func TestThreadService_DeletePermissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uint
	}{
		{"author", 3},
		{"moderator", 2},
		{"owner", 1},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := newThreadService(noopThreadRepo(), nil)
			err := svc.DeleteThread(ctx, 7, 11, tc.userID)
			require.NoError(t, err)
		})
	}

	t.Run("other member", func(t *testing.T) {
		t.Parallel()
		groups := noopGroupRepo()
		groups.getByIDFn = func(_ context.Context, _ uint) (*models.Group, error) {
			g := duneGroup()
			g.MemberIDs = append(g.MemberIDs, 4)
			return g, nil
		}
		svc := NewThreadService(groups, noopThreadRepo(), noopUserRepo(), nil)
		assertForbiddenError(t, svc.DeleteThread(ctx, 7, 11, 4))
		assertForbiddenError(t, svc.DeleteReply(ctx, 7, 11, 21, 4))
	})
}

func TestThreadService_LikeIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := noopThreadRepo()
	calls := 0
	repo.likeFn = func(_ context.Context, _, _ uint) (bool, error) {
		calls++
		return calls == 1, nil
	}
	pub := &recordingPublisher{}
	svc := newThreadService(repo, pub)
	ctx := context.Background()

	_, err := svc.LikeThread(ctx, 7, 11, 3)
	require.NoError(t, err)
	first := len(pub.Paths())
	assert.Equal(t, []string{"groups/7/threads/11/likes", "groups/7/threads", "groups/7/threads/11"}, pub.Paths())

	_, err = svc.LikeThread(ctx, 7, 11, 3)
	require.NoError(t, err)
	assert.Len(t, pub.Paths(), first, "a repeated like must not announce a change")
}

func TestThreadService_CreateReplyChecksThread(t *testing.T) {
	t.Parallel()

	repo := noopThreadRepo()
	repo.getByIDFn = func(_ context.Context, _, tid uint) (*models.Thread, error) {
		return nil, models.NewNotFoundError("Thread", tid)
	}
	repo.createReplyFn = func(_ context.Context, _ *models.Reply) error {
		t.Fatal("reply must not be written for a missing thread")
		return nil
	}
	svc := newThreadService(repo, nil)

	_, err := svc.CreateReply(context.Background(), CreateReplyInput{GroupID: 7, ThreadID: 99, UserID: 3, Content: "hello"})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestThreadService_UpdateThreadAuthorOnly(t *testing.T) {
	t.Parallel()

	svc := newThreadService(noopThreadRepo(), nil)
	_, err := svc.UpdateThread(context.Background(), UpdateThreadInput{GroupID: 7, ThreadID: 11, UserID: 2, Content: "edited"})
	assertForbiddenError(t, err)

	_, err = svc.UpdateThread(context.Background(), UpdateThreadInput{GroupID: 7, ThreadID: 11, UserID: 3, Content: "edited"})
	require.NoError(t, err)
}
