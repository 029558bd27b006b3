package server

import (
	"bookclub/internal/models"
	"bookclub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user's profile
// @Tags users
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me. Sending a different username
// is rejected; usernames are fixed at signup.
// @Summary Update profile
// @Tags users
// @Security BearerAuth
// @Param request body object{username=string,bio=string} true "Profile changes"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		Username: req.Username,
		Bio:      req.Bio,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar (multipart field "image").
// @Summary Upload avatar
// @Tags users
// @Security BearerAuth
// @Accept multipart/form-data
// @Param image formData file true "JPEG, PNG or WebP image"
// @Success 200 {object} models.User
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	in, err := readUpload(c, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	stored, err := s.imageService.Upload(ctx, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	user, err := s.userService.UpdateAvatar(ctx, userID, stored.URL)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetMyGroups handles GET /api/users/me/groups
// @Summary Groups the current user belongs to
// @Tags users
// @Security BearerAuth
// @Success 200 {array} models.Group
// @Router /users/me/groups [get]
func (s *Server) GetMyGroups(c *fiber.Ctx) error {
	groups, err := s.userService.ListMyGroups(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(groups)
}

// GetUserProfile handles GET /api/users/:id. Email is only shown to its owner.
// @Summary User profile
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if id != currentUserID(c) {
		public := *user
		public.Email = ""
		public.GroupIDs = nil
		return c.JSON(public)
	}
	return c.JSON(user)
}
