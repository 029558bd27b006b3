package server

import (
	"bookclub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetDocuments handles GET /api/docs/*: a one-shot read of the snapshot a
// listener on the same path would receive.
// @Summary Read a document path
// @Description Paths: users/{uid}, groups, groups/{gid}, groups/{gid}/threads, groups/{gid}/threads/{tid}, groups/{gid}/threads/{tid}/replies, groups/{gid}/threads/{tid}/likes, posts, posts/{pid}
// @Tags documents
// @Security BearerAuth
// @Param path path string true "Document or collection path"
// @Success 200 {object} docstore.Snapshot
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /docs/{path} [get]
func (s *Server) GetDocuments(c *fiber.Ctx) error {
	path := c.Params("*")
	if path == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Document path is required"))
	}

	snap, err := s.snapshotService.Resolve(c.UserContext(), currentUserID(c), path)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(snap)
}
