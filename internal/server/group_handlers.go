package server

import (
	"context"

	"bookclub/internal/membership"
	"bookclub/internal/models"
	"bookclub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetGroups handles GET /api/groups
// @Summary List groups
// @Tags groups
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Group
// @Router /groups [get]
func (s *Server) GetGroups(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	groups, err := s.groupService.ListGroups(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(groups)
}

// SearchGroups handles GET /api/groups/search?q=... (title or book author)
// @Summary Search groups
// @Tags groups
// @Security BearerAuth
// @Param q query string true "Search text"
// @Success 200 {array} models.Group
// @Failure 400 {object} models.ErrorResponse
// @Router /groups/search [get]
func (s *Server) SearchGroups(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	groups, err := s.groupService.SearchGroups(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(groups)
}

type groupRequest struct {
	Title              *string `json:"title"`
	Author             *string `json:"author"`
	Description        *string `json:"description"`
	CoverURL           *string `json:"cover_url"`
	ModerationQuestion *string `json:"moderation_question"`
	ModerationAnswer   *string `json:"moderation_answer"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateGroup handles POST /api/groups. The creator becomes owner.
// @Summary Create group
// @Tags groups
// @Security BearerAuth
// @Param request body object{title=string,author=string,description=string,cover_url=string,moderation_question=string,moderation_answer=string} true "Group"
// @Success 201 {object} models.Group
// @Failure 400 {object} models.ErrorResponse
// @Router /groups [post]
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var req groupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.CreateGroup(c.UserContext(), service.CreateGroupInput{
		OwnerID:            currentUserID(c),
		Title:              deref(req.Title),
		Author:             deref(req.Author),
		Description:        deref(req.Description),
		CoverURL:           deref(req.CoverURL),
		ModerationQuestion: deref(req.ModerationQuestion),
		ModerationAnswer:   deref(req.ModerationAnswer),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// GetGroup handles GET /api/groups/:id
// @Summary Get group
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} models.Group
// @Failure 404 {object} models.ErrorResponse
// @Router /groups/{id} [get]
func (s *Server) GetGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	group, err := s.groupService.GetGroup(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}

// UpdateGroup handles PUT /api/groups/:id (owner or moderator)
// @Summary Update group
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} models.Group
// @Failure 403 {object} models.ErrorResponse
// @Router /groups/{id} [put]
func (s *Server) UpdateGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req groupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.UpdateGroup(c.UserContext(), service.UpdateGroupInput{
		UserID:             currentUserID(c),
		GroupID:            id,
		Title:              req.Title,
		Author:             req.Author,
		Description:        req.Description,
		CoverURL:           req.CoverURL,
		ModerationQuestion: req.ModerationQuestion,
		ModerationAnswer:   req.ModerationAnswer,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}

// DeleteGroup handles DELETE /api/groups/:id (owner only)
// @Summary Delete group
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} object{message=string}
// @Router /groups/{id} [delete]
func (s *Server) DeleteGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.groupService.DeleteGroup(c.UserContext(), id, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Group deleted"})
}

// GetModerationQuestion handles GET /api/groups/:id/question
// @Summary Moderation question asked before joining
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} object{question=string}
// @Router /groups/{id}/question [get]
func (s *Server) GetModerationQuestion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	q, err := s.groupService.GetModerationQuestion(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"question": q})
}

// JoinGroup handles POST /api/groups/:id/join with the moderation answer.
// @Summary Join group
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param request body object{answer=string} true "Answer to the moderation question"
// @Success 200 {object} models.Group
// @Failure 403 {object} models.ErrorResponse
// @Router /groups/{id}/join [post]
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.JoinGroup(c.UserContext(), id, currentUserID(c), req.Answer)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}

// LeaveGroup handles POST /api/groups/:id/leave
// @Summary Leave group
// @Tags groups
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} object{message=string}
// @Router /groups/{id}/leave [post]
func (s *Server) LeaveGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.groupService.LeaveGroup(c.UserContext(), id, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left group"})
}

// PromoteModerator handles POST /api/groups/:id/moderators/:userId (owner only)
// @Summary Promote member to moderator
// @Tags groups
// @Security BearerAuth
// @Success 200 {object} models.Group
// @Router /groups/{id}/moderators/{userId} [post]
func (s *Server) PromoteModerator(c *fiber.Ctx) error {
	return s.changeRole(c, s.groupService.PromoteModerator)
}

// DemoteModerator handles DELETE /api/groups/:id/moderators/:userId (owner only)
// @Summary Demote moderator
// @Tags groups
// @Security BearerAuth
// @Success 200 {object} models.Group
// @Router /groups/{id}/moderators/{userId} [delete]
func (s *Server) DemoteModerator(c *fiber.Ctx) error {
	return s.changeRole(c, s.groupService.DemoteModerator)
}

func (s *Server) changeRole(c *fiber.Ctx, fn func(ctx context.Context, groupID, actorID, targetID uint) (*models.Group, error)) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	group, err := fn(c.UserContext(), groupID, currentUserID(c), targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}

// RemoveMember handles DELETE /api/groups/:id/members/:userId
// @Summary Remove member
// @Tags groups
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /groups/{id}/members/{userId} [delete]
func (s *Server) RemoveMember(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.groupService.RemoveMember(c.UserContext(), groupID, currentUserID(c), targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member removed"})
}

// UploadGroupCover handles POST /api/groups/:id/cover (multipart field "image")
// @Summary Upload group cover
// @Tags groups
// @Security BearerAuth
// @Accept multipart/form-data
// @Param image formData file true "JPEG, PNG or WebP image"
// @Success 200 {object} models.Group
// @Router /groups/{id}/cover [post]
func (s *Server) UploadGroupCover(c *fiber.Ctx) error {
	ctx := c.UserContext()
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := currentUserID(c)

	// Authorize before storing anything.
	group, err := s.groupService.GetGroup(ctx, groupID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if !membership.CanModerate(group, userID) {
		return models.RespondWithAppError(c, models.NewForbiddenError("Only moderators can change the cover"))
	}

	in, err := readUpload(c, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	stored, err := s.imageService.Upload(ctx, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	group, err = s.groupService.SetCover(ctx, groupID, userID, stored.URL)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}
