package service

import (
	"context"

	"bookclub/internal/docstore"
	"bookclub/internal/models"
	"bookclub/internal/repository"
	"bookclub/internal/validation"
)

type UserService struct {
	userRepo  repository.UserRepository
	groupRepo repository.GroupRepository
	publisher Publisher
}

// UpdateProfileInput carries optional profile changes. Username is accepted
// only to reject it: usernames never change after signup.
type UpdateProfileInput struct {
	UserID   uint
	Username *string
	Bio      *string
}

func NewUserService(userRepo repository.UserRepository, groupRepo repository.GroupRepository, publisher Publisher) *UserService {
	return &UserService{userRepo: userRepo, groupRepo: groupRepo, publisher: publisherOrNop(publisher)}
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil && *in.Username != user.Username {
		return nil, models.NewValidationError("Username cannot be changed")
	}

	updates := map[string]interface{}{}
	if in.Bio != nil {
		bio, err := validation.OptionalText("bio", *in.Bio, validation.MaxBioLength)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["bio"] = bio
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateProfile(ctx, in.UserID, updates); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.UserPath(in.UserID))
	return s.userRepo.GetByID(ctx, in.UserID)
}

// UpdateAvatar stores a new avatar URL produced by the image service.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, url string) (*models.User, error) {
	if url == "" {
		return nil, models.NewValidationError("avatar_url is required")
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, map[string]interface{}{"avatar_url": url}); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.UserPath(userID))
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) ListMyGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	return s.groupRepo.ListForUser(ctx, userID)
}
