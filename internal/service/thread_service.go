package service

import (
	"context"

	"bookclub/internal/docstore"
	"bookclub/internal/membership"
	"bookclub/internal/models"
	"bookclub/internal/repository"
	"bookclub/internal/validation"
)

// ThreadService manages discussion inside a group. Every operation requires
// the caller to be a member of the group.
type ThreadService struct {
	groupRepo  repository.GroupRepository
	threadRepo repository.ThreadRepository
	userRepo   repository.UserRepository
	publisher  Publisher
}

type CreateThreadInput struct {
	GroupID uint
	UserID  uint
	Content string
}

type UpdateThreadInput struct {
	GroupID  uint
	ThreadID uint
	UserID   uint
	Content  string
}

type CreateReplyInput struct {
	GroupID  uint
	ThreadID uint
	UserID   uint
	Content  string
}

func NewThreadService(
	groupRepo repository.GroupRepository,
	threadRepo repository.ThreadRepository,
	userRepo repository.UserRepository,
	publisher Publisher,
) *ThreadService {
	return &ThreadService{
		groupRepo:  groupRepo,
		threadRepo: threadRepo,
		userRepo:   userRepo,
		publisher:  publisherOrNop(publisher),
	}
}

// requireMember loads the group and fails unless userID belongs to it.
func (s *ThreadService) requireMember(ctx context.Context, groupID, userID uint) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !membership.CanRead(group, userID) {
		return nil, models.NewForbiddenError("Join this group to see its discussions")
	}
	return group, nil
}

func (s *ThreadService) CreateThread(ctx context.Context, in CreateThreadInput) (*models.Thread, error) {
	content, err := validation.RequireText("content", in.Content, validation.MaxContentLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.requireMember(ctx, in.GroupID, in.UserID); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	thread := &models.Thread{GroupID: in.GroupID, UserID: in.UserID, AuthorName: author.Username, Content: content}
	if err := s.threadRepo.Create(ctx, thread); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.ThreadsPath(in.GroupID))
	return thread, nil
}

// ListThreads returns a group's threads newest first, each marked with
// whether userID liked it.
func (s *ThreadService) ListThreads(ctx context.Context, groupID, userID uint, limit, offset int) ([]models.Thread, error) {
	group, err := s.requireMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	threads, err := s.threadRepo.List(ctx, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	threads = membership.VisibleThreads(group, userID, threads)
	return threads, markLiked(ctx, s.threadRepo, userID, threads)
}

func (s *ThreadService) GetThread(ctx context.Context, groupID, threadID, userID uint) (*models.Thread, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	thread, err := s.threadRepo.GetByID(ctx, groupID, threadID)
	if err != nil {
		return nil, err
	}
	one := []models.Thread{*thread}
	if err := markLiked(ctx, s.threadRepo, userID, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// UpdateThread edits the content. Only the author may edit.
func (s *ThreadService) UpdateThread(ctx context.Context, in UpdateThreadInput) (*models.Thread, error) {
	content, err := validation.RequireText("content", in.Content, validation.MaxContentLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.requireMember(ctx, in.GroupID, in.UserID); err != nil {
		return nil, err
	}
	thread, err := s.threadRepo.GetByID(ctx, in.GroupID, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != in.UserID {
		return nil, models.NewForbiddenError("Only the author can edit this thread")
	}
	if err := s.threadRepo.UpdateContent(ctx, thread.ID, content); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.ThreadsPath(in.GroupID), docstore.ThreadPath(in.GroupID, in.ThreadID))
	return s.threadRepo.GetByID(ctx, in.GroupID, in.ThreadID)
}

// DeleteThread removes a thread with its replies and likes. The author or a
// group moderator may delete.
func (s *ThreadService) DeleteThread(ctx context.Context, groupID, threadID, userID uint) error {
	group, err := s.requireMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	thread, err := s.threadRepo.GetByID(ctx, groupID, threadID)
	if err != nil {
		return err
	}
	if thread.UserID != userID && !membership.CanModerate(group, userID) {
		return models.NewForbiddenError("Only the author or a moderator can delete this thread")
	}
	if err := s.threadRepo.Delete(ctx, threadID); err != nil {
		return err
	}
	s.publisher.PublishChange(ctx,
		docstore.ThreadsPath(groupID),
		docstore.ThreadPath(groupID, threadID),
		docstore.RepliesPath(groupID, threadID),
		docstore.LikesPath(groupID, threadID),
	)
	return nil
}

// CreateReply adds a reply and increments the thread's reply count in the
// same transaction.
func (s *ThreadService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	content, err := validation.RequireText("content", in.Content, validation.MaxContentLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.requireMember(ctx, in.GroupID, in.UserID); err != nil {
		return nil, err
	}
	if _, err := s.threadRepo.GetByID(ctx, in.GroupID, in.ThreadID); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{ThreadID: in.ThreadID, UserID: in.UserID, Username: author.Username, Content: content}
	if err := s.threadRepo.CreateReply(ctx, reply); err != nil {
		return nil, err
	}
	s.publishThreadActivity(ctx, in.GroupID, in.ThreadID, docstore.RepliesPath(in.GroupID, in.ThreadID))
	return reply, nil
}

// ListReplies returns replies oldest first.
func (s *ThreadService) ListReplies(ctx context.Context, groupID, threadID, userID uint, limit, offset int) ([]models.Reply, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if _, err := s.threadRepo.GetByID(ctx, groupID, threadID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.threadRepo.ListReplies(ctx, threadID, limit, offset)
}

// DeleteReply removes a reply. The reply author or a moderator may delete.
func (s *ThreadService) DeleteReply(ctx context.Context, groupID, threadID, replyID, userID uint) error {
	group, err := s.requireMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if _, err := s.threadRepo.GetByID(ctx, groupID, threadID); err != nil {
		return err
	}
	reply, err := s.threadRepo.GetReply(ctx, threadID, replyID)
	if err != nil {
		return err
	}
	if reply.UserID != userID && !membership.CanModerate(group, userID) {
		return models.NewForbiddenError("Only the author or a moderator can delete this reply")
	}
	if err := s.threadRepo.DeleteReply(ctx, reply); err != nil {
		return err
	}
	s.publishThreadActivity(ctx, groupID, threadID, docstore.RepliesPath(groupID, threadID))
	return nil
}

// LikeThread is idempotent: liking twice changes nothing the second time.
func (s *ThreadService) LikeThread(ctx context.Context, groupID, threadID, userID uint) (*models.Thread, error) {
	return s.toggleLike(ctx, groupID, threadID, userID, s.threadRepo.Like)
}

// UnlikeThread is idempotent: unliking without a like changes nothing.
func (s *ThreadService) UnlikeThread(ctx context.Context, groupID, threadID, userID uint) (*models.Thread, error) {
	return s.toggleLike(ctx, groupID, threadID, userID, s.threadRepo.Unlike)
}

func (s *ThreadService) toggleLike(
	ctx context.Context,
	groupID, threadID, userID uint,
	apply func(ctx context.Context, threadID, userID uint) (bool, error),
) (*models.Thread, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if _, err := s.threadRepo.GetByID(ctx, groupID, threadID); err != nil {
		return nil, err
	}
	changed, err := apply(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishThreadActivity(ctx, groupID, threadID, docstore.LikesPath(groupID, threadID))
	}
	return s.GetThread(ctx, groupID, threadID, userID)
}

// ListLikes returns the like documents of a thread.
func (s *ThreadService) ListLikes(ctx context.Context, groupID, threadID, userID uint) ([]models.Like, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if _, err := s.threadRepo.GetByID(ctx, groupID, threadID); err != nil {
		return nil, err
	}
	return s.threadRepo.ListLikes(ctx, threadID)
}

// publishThreadActivity announces a counter change along with the
// sub-collection that caused it.
func (s *ThreadService) publishThreadActivity(ctx context.Context, groupID, threadID uint, sub string) {
	s.publisher.PublishChange(ctx, sub, docstore.ThreadsPath(groupID), docstore.ThreadPath(groupID, threadID))
}

// markLiked sets Liked on each thread userID has liked.
func markLiked(ctx context.Context, repo repository.ThreadRepository, userID uint, threads []models.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	ids := make([]uint, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	liked, err := repo.LikedThreadIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	set := make(map[uint]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for i := range threads {
		threads[i].Liked = set[threads[i].ID]
	}
	return nil
}
