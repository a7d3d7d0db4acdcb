package service

import (
	"context"
	"strings"

	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	events      EventPublisher
}

type CreateCommentInput struct {
	UserID   uint   `json:"-"`
	PostID   uint   `json:"post_id" validate:"required,gt=0"`
	ParentID *uint  `json:"parent_id" validate:"omitempty,gt=0"`
	Content  string `json:"content" validate:"notblank,max=5000"`
}

type UpdateCommentInput struct {
	UserID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	Content   string `json:"content" validate:"notblank,max=5000"`
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	events EventPublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		events:      events,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetPublishedByID(ctx, in.PostID, 0); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewFieldValidationError(map[string]string{
				"parent_id": "must reference a comment on the same post",
			})
		}
	}

	comment := &models.Comment{
		Content:  in.Content,
		UserID:   in.UserID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, notifications.PostEvent{
		Type: notifications.EventCommentCreated, PostID: in.PostID, CommentID: created.ID, ActorID: in.UserID,
	})
	return created, nil
}

// ListComments returns the thread of a post oldest first. An unknown post yields an empty list.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) loadOwned(ctx context.Context, commentID, userID uint, action string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("You can only " + action + " your own comments")
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment, err := s.loadOwned(ctx, in.CommentID, in.UserID, "update")
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.Update(ctx, in.CommentID, in.Content); err != nil {
		return nil, err
	}

	updated, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, notifications.PostEvent{
		Type: notifications.EventCommentUpdated, PostID: comment.PostID, CommentID: comment.ID, ActorID: in.UserID,
	})
	return updated, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.loadOwned(ctx, in.CommentID, in.UserID, "delete")
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.Delete(ctx, in.CommentID); err != nil {
		return nil, err
	}
	publish(ctx, s.events, notifications.PostEvent{
		Type: notifications.EventCommentDeleted, PostID: comment.PostID, CommentID: comment.ID, ActorID: in.UserID,
	})
	return comment, nil
}
