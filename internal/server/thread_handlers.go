package server

import (
	"bookclub/internal/models"
	"bookclub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// threadParams parses :id and :threadId. On failure the 400 response is
// already written and ok is false.
func threadParams(c *fiber.Ctx) (groupID, threadID uint, ok bool) {
	var err error
	if groupID, err = parseID(c, "id"); err != nil {
		return 0, 0, false
	}
	if threadID, err = parseID(c, "threadId"); err != nil {
		return 0, 0, false
	}
	return groupID, threadID, true
}

// GetThreads handles GET /api/groups/:id/threads (members only, newest first)
// @Summary List discussion threads
// @Tags threads
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {array} models.Thread
// @Failure 403 {object} models.ErrorResponse
// @Router /groups/{id}/threads [get]
func (s *Server) GetThreads(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	threads, err := s.threadService.ListThreads(c.UserContext(), groupID, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(threads)
}

// CreateThread handles POST /api/groups/:id/threads
// @Summary Start a discussion
// @Tags threads
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Param request body object{content=string} true "Thread"
// @Success 201 {object} models.Thread
// @Router /groups/{id}/threads [post]
func (s *Server) CreateThread(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	thread, err := s.threadService.CreateThread(c.UserContext(), service.CreateThreadInput{
		GroupID: groupID,
		UserID:  currentUserID(c),
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// GetThread handles GET /api/groups/:id/threads/:threadId
// @Summary Get thread
// @Tags threads
// @Security BearerAuth
// @Success 200 {object} models.Thread
// @Router /groups/{id}/threads/{threadId} [get]
func (s *Server) GetThread(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	thread, err := s.threadService.GetThread(c.UserContext(), groupID, threadID, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(thread)
}

// UpdateThread handles PUT /api/groups/:id/threads/:threadId (author only)
// @Summary Edit thread
// @Tags threads
// @Security BearerAuth
// @Param request body object{content=string} true "Thread"
// @Success 200 {object} models.Thread
// @Router /groups/{id}/threads/{threadId} [put]
func (s *Server) UpdateThread(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	thread, err := s.threadService.UpdateThread(c.UserContext(), service.UpdateThreadInput{
		GroupID:  groupID,
		ThreadID: threadID,
		UserID:   currentUserID(c),
		Content:  req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(thread)
}

// DeleteThread handles DELETE /api/groups/:id/threads/:threadId (author or moderator)
// @Summary Delete thread
// @Tags threads
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /groups/{id}/threads/{threadId} [delete]
func (s *Server) DeleteThread(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	if err := s.threadService.DeleteThread(c.UserContext(), groupID, threadID, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Thread deleted"})
}

// GetReplies handles GET /api/groups/:id/threads/:threadId/replies (oldest first)
// @Summary List replies
// @Tags threads
// @Security BearerAuth
// @Success 200 {array} models.Reply
// @Router /groups/{id}/threads/{threadId}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	replies, err := s.threadService.ListReplies(c.UserContext(), groupID, threadID, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(replies)
}

// CreateReply handles POST /api/groups/:id/threads/:threadId/replies
// @Summary Reply to a thread
// @Tags threads
// @Security BearerAuth
// @Param request body object{content=string} true "Reply"
// @Success 201 {object} models.Reply
// @Router /groups/{id}/threads/{threadId}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reply, err := s.threadService.CreateReply(c.UserContext(), service.CreateReplyInput{
		GroupID:  groupID,
		ThreadID: threadID,
		UserID:   currentUserID(c),
		Content:  req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// DeleteReply handles DELETE /api/groups/:id/threads/:threadId/replies/:replyId
// @Summary Delete reply
// @Tags threads
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /groups/{id}/threads/{threadId}/replies/{replyId} [delete]
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	replyID, err := parseID(c, "replyId")
	if err != nil {
		return nil
	}
	if err := s.threadService.DeleteReply(c.UserContext(), groupID, threadID, replyID, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reply deleted"})
}

// GetLikes handles GET /api/groups/:id/threads/:threadId/likes
// @Summary List likes
// @Tags threads
// @Security BearerAuth
// @Success 200 {array} models.Like
// @Router /groups/{id}/threads/{threadId}/likes [get]
func (s *Server) GetLikes(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	likes, err := s.threadService.ListLikes(c.UserContext(), groupID, threadID, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(likes)
}

// LikeThread handles POST /api/groups/:id/threads/:threadId/like. Liking twice is a no-op.
// @Summary Like thread
// @Tags threads
// @Security BearerAuth
// @Success 200 {object} models.Thread
// @Router /groups/{id}/threads/{threadId}/like [post]
func (s *Server) LikeThread(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	thread, err := s.threadService.LikeThread(c.UserContext(), groupID, threadID, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(thread)
}

// UnlikeThread handles DELETE /api/groups/:id/threads/:threadId/like
// @Summary Unlike thread
// @Tags threads
// @Security BearerAuth
// @Success 200 {object} models.Thread
// @Router /groups/{id}/threads/{threadId}/like [delete]
func (s *Server) UnlikeThread(c *fiber.Ctx) error {
	groupID, threadID, ok := threadParams(c)
	if !ok {
		return nil
	}
	thread, err := s.threadService.UnlikeThread(c.UserContext(), groupID, threadID, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(thread)
}
