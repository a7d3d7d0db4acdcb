package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listPublishedFn    func(context.Context, repository.ListQuery) (*repository.PostPage, error)
	getPublishedByIDFn func(context.Context, uint, uint) (*models.Post, error)
	getByIDFn          func(context.Context, uint, uint) (*models.Post, error)
	createFn           func(context.Context, *models.Post, []string) error
	updateFn           func(context.Context, uint, map[string]interface{}, []string, bool) error
	deleteFn           func(context.Context, uint) error
	isLikedFn          func(context.Context, uint, uint) (bool, error)
	likeFn             func(context.Context, uint, uint) (bool, error)
	unlikeFn           func(context.Context, uint, uint) (bool, error)
	countLikesFn       func(context.Context, uint) (int64, error)
	incrementViewFn    func(context.Context, uint, int64) error
}

func (s *postRepoStub) ListPublished(ctx context.Context, q repository.ListQuery) (*repository.PostPage, error) {
	return s.listPublishedFn(ctx, q)
}
func (s *postRepoStub) GetPublishedByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getPublishedByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) Create(ctx context.Context, post *models.Post, tags []string) error {
	return s.createFn(ctx, post, tags)
}
func (s *postRepoStub) Update(ctx context.Context, id uint, fields map[string]interface{}, tags []string, replaceTags bool) error {
	return s.updateFn(ctx, id, fields, tags, replaceTags)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) CountLikes(ctx context.Context, postID uint) (int64, error) {
	return s.countLikesFn(ctx, postID)
}
func (s *postRepoStub) IncrementViewCount(ctx context.Context, postID uint, delta int64) error {
	return s.incrementViewFn(ctx, postID, delta)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listPublishedFn: func(_ context.Context, _ repository.ListQuery) (*repository.PostPage, error) {
			return &repository.PostPage{Items: []*models.Post{}}, nil
		},
		getPublishedByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		getByIDFn:          func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		createFn:           func(_ context.Context, _ *models.Post, _ []string) error { return nil },
		updateFn:           func(_ context.Context, _ uint, _ map[string]interface{}, _ []string, _ bool) error { return nil },
		deleteFn:           func(_ context.Context, _ uint) error { return nil },
		isLikedFn:          func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		likeFn:             func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unlikeFn:           func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		countLikesFn:       func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		incrementViewFn:    func(_ context.Context, _ uint, _ int64) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
	updateFn     func(context.Context, uint, string) error
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Update(ctx context.Context, id uint, content string) error {
	return s.updateFn(ctx, id, content)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, c *models.Comment) error { c.ID = 1; return nil },
		getByIDFn:    func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return []*models.Comment{}, nil },
		updateFn:     func(_ context.Context, _ uint, _ string) error { return nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, uint, map[string]interface{}) error
	touchLastLoginFn func(context.Context, uint, time.Time) error
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
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.updateFn(ctx, id, fields)
}
func (s *userRepoStub) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.touchLastLoginFn(ctx, id, at)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id, IsActive: true}, nil },
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn:  func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, u *models.User) error { u.ID = 1; return nil },
		updateFn:         func(_ context.Context, _ uint, _ map[string]interface{}) error { return nil },
		touchLastLoginFn: func(_ context.Context, _ uint, _ time.Time) error { return nil },
	}
}

// taxonomyStub counts tag-count invalidations.
type taxonomyStub struct {
	invalidations int
}

func (s *taxonomyStub) ListTagCounts(context.Context) ([]models.TagCount, error) {
	return []models.TagCount{}, nil
}
func (s *taxonomyStub) ListCategories(context.Context) ([]models.Category, error) {
	return []models.Category{}, nil
}
func (s *taxonomyStub) InvalidateTagCounts(context.Context) { s.invalidations++ }

// eventRecorder captures published post events.
type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.PostEvent
	err    error
}

func (r *eventRecorder) PublishPostEvent(_ context.Context, ev notifications.PostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// viewRecorderStub captures recorded views synchronously.
type viewRecorderStub struct {
	ids []uint
}

func (v *viewRecorderStub) Record(_ context.Context, postID uint) { v.ids = append(v.ids, postID) }

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func ptr[T any](v T) *T { return &v }
