package service

import (
	"context"

	"bookclub/internal/docstore"
	"bookclub/internal/models"
	"bookclub/internal/repository"
	"bookclub/internal/validation"
)

type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	publisher Publisher
}

type CreatePostInput struct {
	UserID uint
	Title  string
	Body   string
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, publisher Publisher) *PostService {
	return &PostService{postRepo: postRepo, userRepo: userRepo, publisher: publisherOrNop(publisher)}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title, err := validation.RequireText("title", in.Title, validation.MaxTitleLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	body, err := validation.RequireText("body", in.Body, validation.MaxBodyLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{UserID: author.ID, AuthorName: author.Username, Title: title, Body: body}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, docstore.PostsPath, docstore.PostPath(post.ID))
	return post, nil
}

// ListFeed returns the global feed, newest first.
func (s *PostService) ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	limit, offset = normalizePage(limit, offset)
	return s.postRepo.List(ctx, limit, offset)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// DeletePost removes a post. Only its author may delete it.
func (s *PostService) DeletePost(ctx context.Context, postID, userID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return models.NewForbiddenError("Only the author can delete this post")
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	s.publisher.PublishChange(ctx, docstore.PostsPath, docstore.PostPath(postID))
	return nil
}
