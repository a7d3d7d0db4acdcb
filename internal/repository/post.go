package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/observability"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// Listing defaults and bounds.
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortBy    = "created_at"
	DefaultSortOrder = "DESC"
)

// sortColumns is the allow-list of sortable fields. Both snake and camel case are
// accepted; the values are trusted SQL fragments.
var sortColumns = map[string]string{
	"created_at":     "posts.created_at",
	"createdAt":      "posts.created_at",
	"updated_at":     "posts.updated_at",
	"updatedAt":      "posts.updated_at",
	"published_at":   "posts.published_at",
	"publishedAt":    "posts.published_at",
	"title":          "posts.title",
	"view_count":     "posts.view_count",
	"viewCount":      "posts.view_count",
	"likes_count":    "likes_count",
	"likesCount":     "likes_count",
	"comments_count": "comments_count",
	"commentsCount":  "comments_count",
}

// ListQuery describes a page of published posts.
type ListQuery struct {
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
	Search        string
	Tags          []string
	AuthorID      uint
	CategoryID    uint
	CurrentUserID uint
}

// Normalized returns a copy with defaults applied and sort options restricted to the allow-list.
func (q ListQuery) Normalized() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = DefaultSortBy
	}
	switch strings.ToUpper(q.SortOrder) {
	case "ASC":
		q.SortOrder = "ASC"
	default:
		q.SortOrder = DefaultSortOrder
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Tags = normalizeTagNames(q.Tags)
	return q
}

// Offset is the number of rows skipped before the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PostPage is one page of posts plus the size of the whole filtered set.
type PostPage struct {
	Items      []*models.Post
	TotalCount int64
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	ListPublished(ctx context.Context, q ListQuery) (*PostPage, error)
	GetPublishedByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	Create(ctx context.Context, post *models.Post, tags []string) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, tags []string, replaceTags bool) error
	Delete(ctx context.Context, id uint) error
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Like(ctx context.Context, userID, postID uint) (bool, error)
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
	CountLikes(ctx context.Context, postID uint) (int64, error)
	IncrementViewCount(ctx context.Context, postID uint, delta int64) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// publishedFilters applies every listing filter. It is shared by the count and page
// queries so both always describe the same set.
func (r *postRepository) publishedFilters(q ListQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("posts.is_published = ?", true)
		if q.Search != "" {
			pattern := containsPattern(q.Search)
			db = db.Where(
				"("+caseInsensitiveContains(r.db, "posts.title")+" OR "+caseInsensitiveContains(r.db, "posts.content")+")",
				pattern, pattern,
			)
		}
		if len(q.Tags) > 0 {
			db = db.Where(
				"EXISTS (SELECT 1 FROM post_tags JOIN tags ON tags.id = post_tags.tag_id WHERE post_tags.post_id = posts.id AND tags.name IN ?)",
				q.Tags,
			)
		}
		if q.AuthorID != 0 {
			db = db.Where("posts.user_id = ?", q.AuthorID)
		}
		if q.CategoryID != 0 {
			db = db.Where("posts.category_id = ?", q.CategoryID)
		}
		return db
	}
}

func (r *postRepository) ListPublished(ctx context.Context, q ListQuery) (page *PostPage, err error) {
	ctx, span := observability.StartDBSpan(ctx, "ListPublished", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list", "posts")()

	q = q.Normalized()
	filters := r.publishedFilters(q)

	var total int64
	posts := make([]*models.Post, 0, q.Limit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.WithContext(gctx).
			Model(&models.Post{}).
			Scopes(filters).
			Distinct("posts.id").
			Count(&total).Error
	})
	g.Go(func() error {
		return r.applyPostDetails(r.db.WithContext(gctx).Model(&models.Post{}), q.CurrentUserID).
			Scopes(filters).
			Preload("User").
			Preload("Category").
			Order(fmt.Sprintf("%s %s, posts.id %s", sortColumns[q.SortBy], q.SortOrder, q.SortOrder)).
			Limit(q.Limit).
			Offset(q.Offset()).
			Find(&posts).Error
	})
	if err := g.Wait(); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("list posts: %w", err))
	}

	if err := r.attachTags(ctx, r.db, posts); err != nil {
		return nil, models.NewInternalError(err)
	}

	return &PostPage{Items: posts, TotalCount: total}, nil
}

func (r *postRepository) GetPublishedByID(ctx context.Context, id uint, currentUserID uint) (post *models.Post, err error) {
	ctx, span := observability.StartDBSpan(ctx, "GetPublishedByID", "posts")
	defer func() { observability.EndSpan(span, err) }()

	return r.getByID(ctx, id, currentUserID, false, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.is_published = ?", true)
	})
}

// GetByID loads a post regardless of publication state. It always reads from the
// primary so that a post re-read right after a write is current.
func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return r.getByID(ctx, id, currentUserID, true)
}

// session starts a statement with no conditions, pinned to the primary when asked.
func (r *postRepository) session(ctx context.Context, primary bool) *gorm.DB {
	db := r.db.WithContext(ctx)
	if primary {
		db = db.Clauses(dbresolver.Write)
	}
	return db
}

func (r *postRepository) getByID(ctx context.Context, id uint, currentUserID uint, primary bool, scopes ...func(*gorm.DB) *gorm.DB) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.session(ctx, primary).Model(&models.Post{}), currentUserID).
		Scopes(scopes...).
		Preload("User").
		Preload("Category").
		Where("posts.id = ?", id).
		Take(&post).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	if err := r.attachTags(ctx, r.session(ctx, primary), []*models.Post{&post}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", currentUserID)
	}

	return db.Select(selectQuery + ", false AS liked")
}

type postTagRow struct {
	PostID uint
	Name   string
}

// attachTags loads the tag names of every post in one query.
func (r *postRepository) attachTags(ctx context.Context, db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		p.Tags = []string{}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var rows []postTagRow
	err := db.WithContext(ctx).
		Table("post_tags").
		Select("post_tags.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", ids).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("load post tags: %w", err)
	}
	for _, row := range rows {
		if p := byID[row.PostID]; p != nil {
			p.Tags = append(p.Tags, row.Name)
		}
	}
	return nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return replacePostTags(tx, post.ID, tags)
	})
	if err != nil {
		return models.NewInternalError(fmt.Errorf("create post: %w", err))
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, tags []string, replaceTags bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			res := tx.Model(&models.Post{ID: id}).Updates(fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		if replaceTags {
			if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
				return err
			}
			return replacePostTags(tx, id, tags)
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "Post", id)
	}
	return nil
}

// replacePostTags upserts the tag names and links them to the post.
func replacePostTags(tx *gorm.DB, postID uint, names []string) error {
	names = normalizeTagNames(names)
	if len(names) == 0 {
		return nil
	}

	tags := make([]models.Tag, 0, len(names))
	for _, n := range names {
		tags = append(tags, models.Tag{Name: n})
	}
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&tags).Error; err != nil {
		return fmt.Errorf("upsert tags: %w", err)
	}

	var ids []uint
	if err := tx.Model(&models.Tag{}).Where("name IN ?", names).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("resolve tag ids: %w", err)
	}

	links := make([]models.PostTag, 0, len(ids))
	for _, tagID := range ids {
		links = append(links, models.PostTag{PostID: postID, TagID: tagID})
	}
	return tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

// Delete removes the post; comments, likes and tag links go with it through
// ON DELETE CASCADE.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Like inserts the like row and reports whether a row was created. A concurrent
// duplicate hits the (user_id, post_id) unique index and inserts nothing.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	like := models.Like{UserID: userID, PostID: postID, CreatedAt: time.Now().UTC()}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Unlike deletes the like row and reports whether one existed.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// IncrementViewCount adds delta to the stored view counter without touching updated_at.
func (r *postRepository) IncrementViewCount(ctx context.Context, postID uint, delta int64) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("increment view count for post %d: %w", postID, err)
	}
	return nil
}
