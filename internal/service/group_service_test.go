package service

import (
	"context"
	"strings"
	"testing"

	"bookclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupService_CreateGroup_Validation(t *testing.T) {
	t.Parallel()

	svc := NewGroupService(noopGroupRepo(), nil)
	ctx := context.Background()
	valid := CreateGroupInput{OwnerID: 1, Title: "Dune", Author: "Herbert", ModerationQuestion: "Q?", ModerationAnswer: "A"}

	tests := []struct {
		name   string
		mutate func(*CreateGroupInput)
	}{
		{"missing title", func(in *CreateGroupInput) { in.Title = "  " }},
		{"missing author", func(in *CreateGroupInput) { in.Author = "" }},
		{"missing question", func(in *CreateGroupInput) { in.ModerationQuestion = "" }},
		{"blank answer", func(in *CreateGroupInput) { in.ModerationAnswer = " \t " }},
		{"title too long", func(in *CreateGroupInput) { in.Title = strings.Repeat("x", 201) }},
		{"description too long", func(in *CreateGroupInput) { in.Description = strings.Repeat("x", 2001) }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := valid
			tc.mutate(&in)
			_, err := svc.CreateGroup(ctx, in)
			assertValidationError(t, err)
		})
	}
}

func TestGroupService_CreateGroup_OwnerIsModeratorAndMember(t *testing.T) {
	t.Parallel()

	repo := noopGroupRepo()
	var created *models.Group
	repo.createWithOwnerFn = func(_ context.Context, g *models.Group) error {
		g.ID = 9
		g.ModeratorIDs = []uint{g.OwnerID}
		g.MemberIDs = []uint{g.OwnerID}
		created = g
		return nil
	}
	pub := &recordingPublisher{}
	svc := NewGroupService(repo, pub)

	g, err := svc.CreateGroup(context.Background(), CreateGroupInput{
		OwnerID: 4, Title: " Emma ", Author: "Austen", ModerationQuestion: "Who?", ModerationAnswer: "Emma",
	})
	require.NoError(t, err)
	assert.Same(t, created, g)
	assert.Equal(t, "Emma", g.Title)
	assert.Equal(t, []uint{4}, g.ModeratorIDs)
	assert.Equal(t, []uint{4}, g.MemberIDs)
	assert.Equal(t, []string{"groups", "groups/9", "users/4"}, pub.Paths())
}

func TestGroupService_JoinGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		userID     uint
		answer     string
		wantCode   string
		wantAdded  bool
		wantNotice bool
	}{
		{name: "exact answer", userID: 8, answer: "The Spice", wantAdded: true, wantNotice: true},
		{name: "case and whitespace differ", userID: 8, answer: "  the   SPICE ", wantAdded: true, wantNotice: true},
		{name: "wrong answer", userID: 8, answer: "water", wantCode: models.CodeForbidden},
		{name: "empty answer", userID: 8, answer: "", wantCode: models.CodeForbidden},
		{name: "already member", userID: 3, answer: "anything"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := noopGroupRepo()
			added := false
			repo.addMemberFn = func(_ context.Context, gid, uid uint, role models.GroupRole) (bool, error) {
				assert.Equal(t, uint(7), gid)
				assert.Equal(t, models.GroupRoleMember, role)
				added = true
				return true, nil
			}
			pub := &recordingPublisher{}
			svc := NewGroupService(repo, pub)

			_, err := svc.JoinGroup(context.Background(), 7, tc.userID, tc.answer)
			if tc.wantCode != "" {
				assertAppErrorCode(t, err, tc.wantCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantAdded, added)
			if tc.wantNotice {
				require.Len(t, pub.events, 1)
				assert.Equal(t, EventJoinAccepted, pub.events[0].event)
				assert.Contains(t, pub.Paths(), "groups/7")
			} else {
				assert.Empty(t, pub.events)
			}
		})
	}
}

func TestGroupService_LeaveGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner cannot leave", func(t *testing.T) {
		t.Parallel()
		svc := NewGroupService(noopGroupRepo(), nil)
		assertValidationError(t, svc.LeaveGroup(ctx, 7, 1))
	})

	t.Run("member leaves", func(t *testing.T) {
		t.Parallel()
		pub := &recordingPublisher{}
		svc := NewGroupService(noopGroupRepo(), pub)
		require.NoError(t, svc.LeaveGroup(ctx, 7, 3))
		assert.Equal(t, []string{"groups", "groups/7", "users/3"}, pub.Paths())
	})

	t.Run("non member", func(t *testing.T) {
		t.Parallel()
		repo := noopGroupRepo()
		repo.removeMemberFn = func(_ context.Context, _, _ uint) (bool, error) { return false, nil }
		svc := NewGroupService(repo, nil)
		assertAppErrorCode(t, svc.LeaveGroup(ctx, 7, 99), models.CodeNotFound)
	})
}

func TestGroupService_ModeratorRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("only owner promotes", func(t *testing.T) {
		t.Parallel()
		svc := NewGroupService(noopGroupRepo(), nil)
		_, err := svc.PromoteModerator(ctx, 7, 2, 3)
		assertForbiddenError(t, err)
	})

	t.Run("owner promotes member", func(t *testing.T) {
		t.Parallel()
		repo := noopGroupRepo()
		var gotRole models.GroupRole
		repo.setRoleFn = func(_ context.Context, _, uid uint, role models.GroupRole) error {
			assert.Equal(t, uint(3), uid)
			gotRole = role
			return nil
		}
		pub := &recordingPublisher{}
		svc := NewGroupService(repo, pub)
		_, err := svc.PromoteModerator(ctx, 7, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, models.GroupRoleMod, gotRole)
		require.Len(t, pub.events, 1)
		assert.Equal(t, EventRoleChanged, pub.events[0].event)
	})

	t.Run("owner role is fixed", func(t *testing.T) {
		t.Parallel()
		svc := NewGroupService(noopGroupRepo(), nil)
		_, err := svc.DemoteModerator(ctx, 7, 1, 1)
		assertValidationError(t, err)
	})

	t.Run("target must be a member", func(t *testing.T) {
		t.Parallel()
		svc := NewGroupService(noopGroupRepo(), nil)
		_, err := svc.PromoteModerator(ctx, 7, 1, 42)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestGroupService_RemoveMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    uint
		target   uint
		wantCode string
	}{
		{name: "moderator removes member", actor: 2, target: 3},
		{name: "owner removes moderator", actor: 1, target: 2},
		{name: "member cannot remove", actor: 3, target: 2, wantCode: models.CodeForbidden},
		{name: "moderator cannot remove owner", actor: 2, target: 1, wantCode: models.CodeForbidden},
		{name: "owner cannot remove self", actor: 1, target: 1, wantCode: models.CodeForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pub := &recordingPublisher{}
			svc := NewGroupService(noopGroupRepo(), pub)
			err := svc.RemoveMember(ctx, 7, tc.actor, tc.target)
			if tc.wantCode != "" {
				assertAppErrorCode(t, err, tc.wantCode)
				assert.Empty(t, pub.events)
				return
			}
			require.NoError(t, err)
			require.Len(t, pub.events, 1)
			assert.Equal(t, userEvent{userID: tc.target, event: EventRemovedFromGroup}, pub.events[0])
		})
	}
}

func TestGroupService_UpdateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("member cannot update", func(t *testing.T) {
		t.Parallel()
		title := "New"
		svc := NewGroupService(noopGroupRepo(), nil)
		_, err := svc.UpdateGroup(ctx, UpdateGroupInput{UserID: 3, GroupID: 7, Title: &title})
		assertForbiddenError(t, err)
	})

	t.Run("moderator updates only given fields", func(t *testing.T) {
		t.Parallel()
		repo := noopGroupRepo()
		var got map[string]interface{}
		repo.updateFn = func(_ context.Context, _ uint, updates map[string]interface{}) error {
			got = updates
			return nil
		}
		title := "  Dune Messiah "
		svc := NewGroupService(repo, nil)
		_, err := svc.UpdateGroup(ctx, UpdateGroupInput{UserID: 2, GroupID: 7, Title: &title})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"title": "Dune Messiah"}, got)
	})

	t.Run("blank answer rejected", func(t *testing.T) {
		t.Parallel()
		blank := " "
		svc := NewGroupService(noopGroupRepo(), nil)
		_, err := svc.UpdateGroup(ctx, UpdateGroupInput{UserID: 1, GroupID: 7, ModerationAnswer: &blank})
		assertValidationError(t, err)
	})

	t.Run("only owner deletes", func(t *testing.T) {
		t.Parallel()
		svc := NewGroupService(noopGroupRepo(), nil)
		assertForbiddenError(t, svc.DeleteGroup(ctx, 7, 2))
	})

	t.Run("delete announces member profiles", func(t *testing.T) {
		t.Parallel()
		pub := &recordingPublisher{}
		svc := NewGroupService(noopGroupRepo(), pub)
		require.NoError(t, svc.DeleteGroup(ctx, 7, 1))
		assert.Equal(t, []string{"groups", "groups/7", "users/1", "users/2", "users/3"}, pub.Paths())
	})
}

func TestGroupService_SearchRequiresQuery(t *testing.T) {
	t.Parallel()
	svc := NewGroupService(noopGroupRepo(), nil)
	_, err := svc.SearchGroups(context.Background(), "   ", 10, 0)
	assertValidationError(t, err)
}
