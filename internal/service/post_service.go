package service

import (
	"context"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"
)

type PostService struct {
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	taxonomyRepo repository.TaxonomyRepository
	views        ViewRecorder
	events       EventPublisher
	now          func() time.Time
}

type CreatePostInput struct {
	UserID     uint     `json:"-"`
	Title      string   `json:"title" validate:"notblank,max=255"`
	Content    string   `json:"content" validate:"notblank,max=50000"`
	Excerpt    string   `json:"excerpt" validate:"max=500"`
	ImageURL   string   `json:"image_url" validate:"omitempty,url"`
	CategoryID *uint    `json:"category_id" validate:"omitempty,gt=0"`
	Tags       []string `json:"tags" validate:"max=10,dive,notblank,max=50"`
}

// UpdatePostInput carries a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	UserID     uint      `json:"-"`
	PostID     uint      `json:"-"`
	Title      *string   `json:"title" validate:"omitempty,notblank,max=255"`
	Content    *string   `json:"content" validate:"omitempty,notblank,max=50000"`
	Excerpt    *string   `json:"excerpt" validate:"omitempty,max=500"`
	ImageURL   *string   `json:"image_url" validate:"omitempty,url"`
	CategoryID *uint     `json:"category_id" validate:"omitempty,gt=0"`
	Tags       *[]string `json:"tags" validate:"omitempty,max=10,dive,notblank,max=50"`
}

func (in UpdatePostInput) empty() bool {
	return in.Title == nil && in.Content == nil && in.Excerpt == nil &&
		in.ImageURL == nil && in.CategoryID == nil && in.Tags == nil
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// PostList is one page of the public listing.
type PostList struct {
	Posts      []*models.Post    `json:"posts"`
	Pagination models.Pagination `json:"pagination"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	taxonomyRepo repository.TaxonomyRepository,
	views ViewRecorder,
	events EventPublisher,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		taxonomyRepo: taxonomyRepo,
		views:        views,
		events:       events,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) ListPosts(ctx context.Context, q repository.ListQuery) (*PostList, error) {
	q = q.Normalized()
	page, err := s.postRepo.ListPublished(ctx, q)
	if err != nil {
		return nil, err
	}
	return &PostList{
		Posts:      page.Items,
		Pagination: models.NewPagination(q.Page, q.Limit, page.TotalCount),
	}, nil
}

// GetPost returns a published post with its comment thread and records a view.
// A post that is missing or unpublished is NOT_FOUND and is not counted.
func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	post, err := s.postRepo.GetPublishedByID(ctx, id, currentUserID)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Comments = comments

	if s.views != nil {
		s.views.Record(ctx, id)
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		Title:       in.Title,
		Content:     in.Content,
		Excerpt:     in.Excerpt,
		ImageURL:    in.ImageURL,
		CategoryID:  in.CategoryID,
		IsPublished: true,
		PublishedAt: &now,
		UserID:      in.UserID,
	}
	if err := s.postRepo.Create(ctx, post, in.Tags); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.afterTagChange(ctx)
	publish(ctx, s.events, notifications.PostEvent{Type: notifications.EventPostCreated, PostID: created.ID, ActorID: in.UserID})
	return created, nil
}

// loadOwned fetches a post and checks that userID owns it.
func (s *PostService) loadOwned(ctx context.Context, postID, userID uint, action string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("You can only " + action + " your own posts")
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if in.empty() {
		return nil, models.NewValidationError("At least one field must be provided")
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.loadOwned(ctx, in.PostID, in.UserID, "update"); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if in.Title != nil {
		fields["title"] = *in.Title
	}
	if in.Content != nil {
		fields["content"] = *in.Content
	}
	if in.Excerpt != nil {
		fields["excerpt"] = strings.TrimSpace(*in.Excerpt)
	}
	if in.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*in.ImageURL)
	}
	if in.CategoryID != nil {
		fields["category_id"] = *in.CategoryID
	}

	var tags []string
	if in.Tags != nil {
		tags = *in.Tags
	}
	if err := s.postRepo.Update(ctx, in.PostID, fields, tags, in.Tags != nil); err != nil {
		return nil, err
	}

	updated, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Tags != nil {
		s.afterTagChange(ctx)
	}
	publish(ctx, s.events, notifications.PostEvent{Type: notifications.EventPostUpdated, PostID: in.PostID, ActorID: in.UserID})
	return updated, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	if _, err := s.loadOwned(ctx, in.PostID, in.UserID, "delete"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	s.afterTagChange(ctx)
	publish(ctx, s.events, notifications.PostEvent{Type: notifications.EventPostDeleted, PostID: in.PostID, ActorID: in.UserID})
	return nil
}

// ToggleLike likes the post if the caller has not, and unlikes it otherwise.
// Duplicate concurrent likes collapse into one row through the unique index.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	if _, err := s.postRepo.GetPublishedByID(ctx, postID, userID); err != nil {
		return nil, err
	}

	isLiked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if isLiked {
		if _, err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.postRepo.Like(ctx, userID, postID); err != nil {
			return nil, err
		}
	}

	count, err := s.postRepo.CountLikes(ctx, postID)
	if err != nil {
		return nil, err
	}

	res := &LikeResult{Liked: !isLiked, LikesCount: count}
	state := "unliked"
	if res.Liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()
	publish(ctx, s.events, notifications.PostEvent{
		Type:       notifications.EventPostLiked,
		PostID:     postID,
		ActorID:    userID,
		Liked:      &res.Liked,
		LikesCount: &res.LikesCount,
	})
	return res, nil
}

func (s *PostService) afterTagChange(ctx context.Context) {
	if s.taxonomyRepo != nil {
		s.taxonomyRepo.InvalidateTagCounts(ctx)
	}
}
