package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bookclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupRepoStub is a stub for repository.GroupRepository.
type groupRepoStub struct {
	createWithOwnerFn  func(context.Context, *models.Group) error
	getByIDFn          func(context.Context, uint) (*models.Group, error)
	moderationAnswerFn func(context.Context, uint) (string, error)
	listFn             func(context.Context, int, int) ([]models.Group, error)
	searchFn           func(context.Context, string, int, int) ([]models.Group, error)
	listForUserFn      func(context.Context, uint) ([]models.Group, error)
	updateFn           func(context.Context, uint, map[string]interface{}) error
	deleteFn           func(context.Context, uint) error
	getMembershipFn    func(context.Context, uint, uint) (*models.GroupMembership, error)
	addMemberFn        func(context.Context, uint, uint, models.GroupRole) (bool, error)
	setRoleFn          func(context.Context, uint, uint, models.GroupRole) error
	removeMemberFn     func(context.Context, uint, uint) (bool, error)
}

func (s *groupRepoStub) CreateWithOwner(ctx context.Context, g *models.Group) error {
	return s.createWithOwnerFn(ctx, g)
}
func (s *groupRepoStub) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	return s.getByIDFn(ctx, id)
}
func (s *groupRepoStub) ModerationAnswer(ctx context.Context, id uint) (string, error) {
	return s.moderationAnswerFn(ctx, id)
}
func (s *groupRepoStub) List(ctx context.Context, limit, offset int) ([]models.Group, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *groupRepoStub) Search(ctx context.Context, q string, limit, offset int) ([]models.Group, error) {
	return s.searchFn(ctx, q, limit, offset)
}
func (s *groupRepoStub) ListForUser(ctx context.Context, userID uint) ([]models.Group, error) {
	return s.listForUserFn(ctx, userID)
}
func (s *groupRepoStub) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return s.updateFn(ctx, id, updates)
}
func (s *groupRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *groupRepoStub) GetMembership(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error) {
	return s.getMembershipFn(ctx, groupID, userID)
}
func (s *groupRepoStub) AddMember(ctx context.Context, groupID, userID uint, role models.GroupRole) (bool, error) {
	return s.addMemberFn(ctx, groupID, userID, role)
}
func (s *groupRepoStub) SetRole(ctx context.Context, groupID, userID uint, role models.GroupRole) error {
	return s.setRoleFn(ctx, groupID, userID, role)
}
func (s *groupRepoStub) RemoveMember(ctx context.Context, groupID, userID uint) (bool, error) {
	return s.removeMemberFn(ctx, groupID, userID)
}

// duneGroup is owned by 1 with 2 as moderator and 3 as a plain member.
func duneGroup() *models.Group {
	return &models.Group{
		ID:                 7,
		Title:              "Dune",
		Author:             "Frank Herbert",
		OwnerID:            1,
		ModerationQuestion: "What must flow?",
		ModeratorIDs:       []uint{1, 2},
		MemberIDs:          []uint{1, 2, 3},
	}
}

func noopGroupRepo() *groupRepoStub {
	return &groupRepoStub{
		createWithOwnerFn:  func(_ context.Context, g *models.Group) error { g.ID = 7; return nil },
		getByIDFn:          func(_ context.Context, _ uint) (*models.Group, error) { return duneGroup(), nil },
		moderationAnswerFn: func(_ context.Context, _ uint) (string, error) { return "The Spice", nil },
		listFn:             func(_ context.Context, _, _ int) ([]models.Group, error) { return nil, nil },
		searchFn:           func(_ context.Context, _ string, _, _ int) ([]models.Group, error) { return nil, nil },
		listForUserFn:      func(_ context.Context, _ uint) ([]models.Group, error) { return nil, nil },
		updateFn:           func(_ context.Context, _ uint, _ map[string]interface{}) error { return nil },
		deleteFn:           func(_ context.Context, _ uint) error { return nil },
		getMembershipFn:    func(_ context.Context, _, _ uint) (*models.GroupMembership, error) { return nil, nil },
		addMemberFn:        func(_ context.Context, _, _ uint, _ models.GroupRole) (bool, error) { return true, nil },
		setRoleFn:          func(_ context.Context, _, _ uint, _ models.GroupRole) error { return nil },
		removeMemberFn:     func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// threadRepoStub is a stub for repository.ThreadRepository.
type threadRepoStub struct {
	createFn         func(context.Context, *models.Thread) error
	getByIDFn        func(context.Context, uint, uint) (*models.Thread, error)
	listFn           func(context.Context, uint, int, int) ([]models.Thread, error)
	updateContentFn  func(context.Context, uint, string) error
	deleteFn         func(context.Context, uint) error
	createReplyFn    func(context.Context, *models.Reply) error
	getReplyFn       func(context.Context, uint, uint) (*models.Reply, error)
	listRepliesFn    func(context.Context, uint, int, int) ([]models.Reply, error)
	deleteReplyFn    func(context.Context, *models.Reply) error
	likeFn           func(context.Context, uint, uint) (bool, error)
	unlikeFn         func(context.Context, uint, uint) (bool, error)
	listLikesFn      func(context.Context, uint) ([]models.Like, error)
	likedThreadIDsFn func(context.Context, uint, []uint) ([]uint, error)
}

func (s *threadRepoStub) Create(ctx context.Context, t *models.Thread) error {
	return s.createFn(ctx, t)
}
func (s *threadRepoStub) GetByID(ctx context.Context, groupID, threadID uint) (*models.Thread, error) {
	return s.getByIDFn(ctx, groupID, threadID)
}
func (s *threadRepoStub) List(ctx context.Context, groupID uint, limit, offset int) ([]models.Thread, error) {
	return s.listFn(ctx, groupID, limit, offset)
}
func (s *threadRepoStub) UpdateContent(ctx context.Context, threadID uint, content string) error {
	return s.updateContentFn(ctx, threadID, content)
}
func (s *threadRepoStub) Delete(ctx context.Context, threadID uint) error {
	return s.deleteFn(ctx, threadID)
}
func (s *threadRepoStub) CreateReply(ctx context.Context, r *models.Reply) error {
	return s.createReplyFn(ctx, r)
}
func (s *threadRepoStub) GetReply(ctx context.Context, threadID, replyID uint) (*models.Reply, error) {
	return s.getReplyFn(ctx, threadID, replyID)
}
func (s *threadRepoStub) ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]models.Reply, error) {
	return s.listRepliesFn(ctx, threadID, limit, offset)
}
func (s *threadRepoStub) DeleteReply(ctx context.Context, r *models.Reply) error {
	return s.deleteReplyFn(ctx, r)
}
func (s *threadRepoStub) Like(ctx context.Context, threadID, userID uint) (bool, error) {
	return s.likeFn(ctx, threadID, userID)
}
func (s *threadRepoStub) Unlike(ctx context.Context, threadID, userID uint) (bool, error) {
	return s.unlikeFn(ctx, threadID, userID)
}
func (s *threadRepoStub) ListLikes(ctx context.Context, threadID uint) ([]models.Like, error) {
	return s.listLikesFn(ctx, threadID)
}
func (s *threadRepoStub) LikedThreadIDs(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	return s.likedThreadIDsFn(ctx, userID, ids)
}

func noopThreadRepo() *threadRepoStub {
	return &threadRepoStub{
		createFn: func(_ context.Context, t *models.Thread) error { t.ID = 11; return nil },
		getByIDFn: func(_ context.Context, gid, tid uint) (*models.Thread, error) {
			return &models.Thread{ID: tid, GroupID: gid, UserID: 3, AuthorName: "reader", Content: "hi"}, nil
		},
		listFn:          func(_ context.Context, _ uint, _, _ int) ([]models.Thread, error) { return nil, nil },
		updateContentFn: func(_ context.Context, _ uint, _ string) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		createReplyFn:   func(_ context.Context, r *models.Reply) error { r.ID = 21; return nil },
		getReplyFn: func(_ context.Context, tid, rid uint) (*models.Reply, error) {
			return &models.Reply{ID: rid, ThreadID: tid, UserID: 3, Content: "reply"}, nil
		},
		listRepliesFn:    func(_ context.Context, _ uint, _, _ int) ([]models.Reply, error) { return nil, nil },
		deleteReplyFn:    func(_ context.Context, _ *models.Reply) error { return nil },
		likeFn:           func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unlikeFn:         func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		listLikesFn:      func(_ context.Context, _ uint) ([]models.Like, error) { return nil, nil },
		likedThreadIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateProfileFn func(context.Context, uint, map[string]interface{}) error
	groupIDsFn      func(context.Context, uint) ([]uint, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	return s.createFn(ctx, u)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error {
	return s.updateProfileFn(ctx, id, updates)
}
func (s *userRepoStub) GroupIDs(ctx context.Context, id uint) ([]uint, error) {
	return s.groupIDsFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "reader"}, nil
		},
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:        func(_ context.Context, _ *models.User) error { return nil },
		updateProfileFn: func(_ context.Context, _ uint, _ map[string]interface{}) error { return nil },
		groupIDsFn:      func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint) (*models.Post, error)
	listFn    func(context.Context, int, int) ([]models.Post, error)
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error {
	return s.createFn(ctx, p)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { p.ID = 5; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, UserID: 1}, nil },
		listFn:    func(_ context.Context, _, _ int) ([]models.Post, error) { return nil, nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
	}
}

type userEvent struct {
	userID uint
	event  string
}

// recordingPublisher captures everything services announce.
type recordingPublisher struct {
	mu     sync.Mutex
	paths  []string
	events []userEvent
}

func (p *recordingPublisher) PublishChange(_ context.Context, paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, paths...)
}

func (p *recordingPublisher) NotifyUser(_ context.Context, userID uint, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, userEvent{userID: userID, event: event})
}

func (p *recordingPublisher) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeForbidden)
}
