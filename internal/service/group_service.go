package service

import (
	"context"
	"strings"

	"bookclub/internal/docstore"
	"bookclub/internal/membership"
	"bookclub/internal/models"
	"bookclub/internal/repository"
	"bookclub/internal/validation"
)

type GroupService struct {
	groupRepo repository.GroupRepository
	publisher Publisher
}

type CreateGroupInput struct {
	OwnerID            uint
	Title              string
	Author             string
	Description        string
	CoverURL           string
	ModerationQuestion string
	ModerationAnswer   string
}

// UpdateGroupInput applies only the non-nil fields.
type UpdateGroupInput struct {
	UserID             uint
	GroupID            uint
	Title              *string
	Author             *string
	Description        *string
	CoverURL           *string
	ModerationQuestion *string
	ModerationAnswer   *string
}

func NewGroupService(groupRepo repository.GroupRepository, publisher Publisher) *GroupService {
	return &GroupService{groupRepo: groupRepo, publisher: publisherOrNop(publisher)}
}

// CreateGroup creates the group with its creator as owner, moderator and member.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	if in.OwnerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	title, err := validation.RequireText("title", in.Title, validation.MaxTitleLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	author, err := validation.RequireText("author", in.Author, validation.MaxTitleLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	description, err := validation.OptionalText("description", in.Description, validation.MaxDescriptionLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	question, err := validation.RequireText("moderation_question", in.ModerationQuestion, validation.MaxQuestionLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	answer, err := validation.RequireText("moderation_answer", in.ModerationAnswer, validation.MaxQuestionLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	group := &models.Group{
		Title:              title,
		Author:             author,
		Description:        description,
		CoverURL:           strings.TrimSpace(in.CoverURL),
		OwnerID:            in.OwnerID,
		ModerationQuestion: question,
		ModerationAnswer:   answer,
	}
	if err := s.groupRepo.CreateWithOwner(ctx, group); err != nil {
		return nil, err
	}

	s.publisher.PublishChange(ctx, docstore.GroupsPath, docstore.GroupPath(group.ID), docstore.UserPath(in.OwnerID))
	return group, nil
}

func (s *GroupService) ListGroups(ctx context.Context, limit, offset int) ([]models.Group, error) {
	limit, offset = normalizePage(limit, offset)
	return s.groupRepo.List(ctx, limit, offset)
}

// SearchGroups matches title or author.
func (s *GroupService) SearchGroups(ctx context.Context, query string, limit, offset int) ([]models.Group, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	limit, offset = normalizePage(limit, offset)
	return s.groupRepo.Search(ctx, query, limit, offset)
}

func (s *GroupService) GetGroup(ctx context.Context, id uint) (*models.Group, error) {
	return s.groupRepo.GetByID(ctx, id)
}

// GetModerationQuestion returns the prompt a prospective member must answer.
func (s *GroupService) GetModerationQuestion(ctx context.Context, id uint) (string, error) {
	group, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return group.ModerationQuestion, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, in UpdateGroupInput) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if !membership.CanModerate(group, in.UserID) {
		return nil, models.NewForbiddenError("Only moderators can edit this group")
	}

	updates := map[string]interface{}{}
	required := []struct {
		column string
		value  *string
		max    int
	}{
		{"title", in.Title, validation.MaxTitleLength},
		{"author", in.Author, validation.MaxTitleLength},
		{"moderation_question", in.ModerationQuestion, validation.MaxQuestionLength},
		{"moderation_answer", in.ModerationAnswer, validation.MaxQuestionLength},
	}
	for _, f := range required {
		if f.value == nil {
			continue
		}
		v, err := validation.RequireText(f.column, *f.value, f.max)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates[f.column] = v
	}
	if in.Description != nil {
		v, err := validation.OptionalText("description", *in.Description, validation.MaxDescriptionLength)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["description"] = v
	}
	if in.CoverURL != nil {
		updates["cover_url"] = strings.TrimSpace(*in.CoverURL)
	}
	if len(updates) == 0 {
		return group, nil
	}

	if err := s.groupRepo.Update(ctx, in.GroupID, updates); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.GroupsPath, docstore.GroupPath(in.GroupID))
	return s.groupRepo.GetByID(ctx, in.GroupID)
}

// JoinGroup admits userID when answer matches the group's moderation answer.
// Joining a group one already belongs to is a no-op.
func (s *GroupService) JoinGroup(ctx context.Context, groupID, userID uint, answer string) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if membership.CanRead(group, userID) {
		return group, nil
	}

	expected, err := s.groupRepo.ModerationAnswer(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !membership.AnswerMatches(expected, answer) {
		return nil, models.NewForbiddenError("Incorrect answer to the moderation question")
	}

	added, err := s.groupRepo.AddMember(ctx, groupID, userID, models.GroupRoleMember)
	if err != nil {
		return nil, err
	}
	if added {
		s.publishMembership(ctx, groupID, userID)
		s.publisher.NotifyUser(ctx, userID, EventJoinAccepted, map[string]interface{}{"group_id": groupID})
	}
	return s.groupRepo.GetByID(ctx, groupID)
}

// LeaveGroup removes userID from the group. The owner cannot leave.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if membership.IsOwner(group, userID) {
		return models.NewValidationError("The owner cannot leave the group")
	}
	removed, err := s.groupRepo.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Membership", userID)
	}
	s.publishMembership(ctx, groupID, userID)
	return nil
}

// PromoteModerator grants the mod role. Owner only.
func (s *GroupService) PromoteModerator(ctx context.Context, groupID, actorID, targetID uint) (*models.Group, error) {
	return s.setRole(ctx, groupID, actorID, targetID, models.GroupRoleMod)
}

// DemoteModerator returns a moderator to a plain member. Owner only.
func (s *GroupService) DemoteModerator(ctx context.Context, groupID, actorID, targetID uint) (*models.Group, error) {
	return s.setRole(ctx, groupID, actorID, targetID, models.GroupRoleMember)
}

func (s *GroupService) setRole(ctx context.Context, groupID, actorID, targetID uint, role models.GroupRole) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !membership.IsOwner(group, actorID) {
		return nil, models.NewForbiddenError("Only the owner can change moderators")
	}
	if targetID == group.OwnerID {
		return nil, models.NewValidationError("The owner's role cannot be changed")
	}
	if !membership.IsMember(group.MemberIDs, targetID) {
		return nil, models.NewNotFoundError("Membership", targetID)
	}
	if err := s.groupRepo.SetRole(ctx, groupID, targetID, role); err != nil {
		return nil, err
	}
	s.publishMembership(ctx, groupID, targetID)
	s.publisher.NotifyUser(ctx, targetID, EventRoleChanged, map[string]interface{}{"group_id": groupID, "role": role})
	return s.groupRepo.GetByID(ctx, groupID)
}

// RemoveMember lets a moderator remove a member. Moderators cannot remove
// the owner, and only the owner can remove another moderator.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, targetID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !membership.CanModerate(group, actorID) {
		return models.NewForbiddenError("Only moderators can remove members")
	}
	if targetID == group.OwnerID {
		return models.NewForbiddenError("The owner cannot be removed")
	}
	if membership.IsMember(group.ModeratorIDs, targetID) && !membership.IsOwner(group, actorID) {
		return models.NewForbiddenError("Only the owner can remove a moderator")
	}
	removed, err := s.groupRepo.RemoveMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Membership", targetID)
	}
	s.publishMembership(ctx, groupID, targetID)
	s.publisher.NotifyUser(ctx, targetID, EventRemovedFromGroup, map[string]interface{}{"group_id": groupID})
	return nil
}

// DeleteGroup removes the group and all of its threads. Owner only.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, userID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !membership.IsOwner(group, userID) {
		return models.NewForbiddenError("Only the owner can delete this group")
	}
	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		return err
	}
	paths := []string{docstore.GroupsPath, docstore.GroupPath(groupID)}
	for _, uid := range group.MemberIDs {
		paths = append(paths, docstore.UserPath(uid))
	}
	s.publisher.PublishChange(ctx, paths...)
	return nil
}

// SetCover stores a cover URL produced by the image service.
func (s *GroupService) SetCover(ctx context.Context, groupID, userID uint, url string) (*models.Group, error) {
	return s.UpdateGroup(ctx, UpdateGroupInput{UserID: userID, GroupID: groupID, CoverURL: &url})
}

// publishMembership announces a membership change. Listeners below the
// group path are re-authorized by the hub on a group notice.
func (s *GroupService) publishMembership(ctx context.Context, groupID, userID uint) {
	s.publisher.PublishChange(ctx, docstore.GroupsPath, docstore.GroupPath(groupID), docstore.UserPath(userID))
}
