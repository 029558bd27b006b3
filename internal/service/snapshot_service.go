package service

import (
	"context"
	"errors"

	"bookclub/internal/docstore"
	"bookclub/internal/membership"
	"bookclub/internal/models"
	"bookclub/internal/observability"
	"bookclub/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// snapshotLimit caps how many documents a collection snapshot carries.
const snapshotLimit = 500

// SnapshotService resolves a document path to its current snapshot on
// behalf of a user. It backs both the document endpoint and listeners.
type SnapshotService struct {
	userRepo   repository.UserRepository
	groupRepo  repository.GroupRepository
	threadRepo repository.ThreadRepository
	postRepo   repository.PostRepository
}

func NewSnapshotService(
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	threadRepo repository.ThreadRepository,
	postRepo repository.PostRepository,
) *SnapshotService {
	return &SnapshotService{userRepo: userRepo, groupRepo: groupRepo, threadRepo: threadRepo, postRepo: postRepo}
}

// Resolve returns the snapshot at path. A missing document yields an empty
// snapshot; group sub-collections require membership; a user document is
// readable only by that user.
func (s *SnapshotService) Resolve(ctx context.Context, userID uint, path string) (snap docstore.Snapshot, err error) {
	ctx, span := observability.StartSpan(ctx, "snapshot", "resolve", attribute.String("path", path))
	defer func() { observability.EndSpan(span, err) }()

	ref, err := docstore.ParsePath(path)
	if err != nil {
		return docstore.Snapshot{}, models.NewValidationError(err.Error())
	}
	canonical := ref.String()

	docs, err := s.documents(ctx, userID, ref)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound && !ref.IsCollection() {
			return docstore.NewSnapshot(canonical, nil), nil
		}
		return docstore.Snapshot{}, err
	}
	return docstore.NewSnapshot(canonical, docs), nil
}

func (s *SnapshotService) documents(ctx context.Context, userID uint, ref docstore.Ref) ([]docstore.Document, error) {
	switch ref.Kind {
	case docstore.KindUser:
		if ref.UserID != userID {
			return nil, models.NewForbiddenError("Profiles are only readable by their owner")
		}
		user, err := s.userRepo.GetByID(ctx, ref.UserID)
		if err != nil {
			return nil, err
		}
		return []docstore.Document{docstore.UserDocument(*user)}, nil

	case docstore.KindGroups:
		groups, err := s.groupRepo.List(ctx, snapshotLimit, 0)
		if err != nil {
			return nil, err
		}
		return docstore.GroupDocuments(groups), nil

	case docstore.KindGroup:
		group, err := s.groupRepo.GetByID(ctx, ref.GroupID)
		if err != nil {
			return nil, err
		}
		return []docstore.Document{docstore.GroupDocument(*group)}, nil

	case docstore.KindPosts:
		posts, err := s.postRepo.List(ctx, snapshotLimit, 0)
		if err != nil {
			return nil, err
		}
		return docstore.PostDocuments(posts), nil

	case docstore.KindPost:
		post, err := s.postRepo.GetByID(ctx, ref.PostID)
		if err != nil {
			return nil, err
		}
		return []docstore.Document{docstore.PostDocument(*post)}, nil
	}

	group, err := s.groupRepo.GetByID(ctx, ref.GroupID)
	if err != nil {
		return nil, err
	}
	if !membership.CanRead(group, userID) {
		return nil, models.NewForbiddenError("Join this group to see its discussions")
	}

	switch ref.Kind {
	case docstore.KindThreads:
		threads, err := s.threadRepo.List(ctx, ref.GroupID, snapshotLimit, 0)
		if err != nil {
			return nil, err
		}
		threads = membership.VisibleThreads(group, userID, threads)
		if err := markLiked(ctx, s.threadRepo, userID, threads); err != nil {
			return nil, err
		}
		return docstore.ThreadDocuments(threads), nil

	case docstore.KindThread:
		thread, err := s.threadRepo.GetByID(ctx, ref.GroupID, ref.ThreadID)
		if err != nil {
			return nil, err
		}
		one := []models.Thread{*thread}
		if err := markLiked(ctx, s.threadRepo, userID, one); err != nil {
			return nil, err
		}
		return docstore.ThreadDocuments(one), nil

	case docstore.KindReplies, docstore.KindLikes:
		// A sub-collection of a missing thread is empty.
		if _, err := s.threadRepo.GetByID(ctx, ref.GroupID, ref.ThreadID); err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				return nil, nil
			}
			return nil, err
		}
		if ref.Kind == docstore.KindLikes {
			likes, err := s.threadRepo.ListLikes(ctx, ref.ThreadID)
			if err != nil {
				return nil, err
			}
			return docstore.LikeDocuments(ref.GroupID, likes), nil
		}
		replies, err := s.threadRepo.ListReplies(ctx, ref.ThreadID, snapshotLimit, 0)
		if err != nil {
			return nil, err
		}
		return docstore.ReplyDocuments(ref.GroupID, replies), nil
	}

	return nil, models.NewValidationError("Unsupported path")
}
