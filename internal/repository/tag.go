package repository

import (
	"context"

	"quill/internal/cache"
	"quill/internal/models"

	"gorm.io/gorm"
)

// TaxonomyRepository lists tags and categories. Both lists change rarely and are
// served through the cache.
type TaxonomyRepository interface {
	ListTagCounts(ctx context.Context) ([]models.TagCount, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	InvalidateTagCounts(ctx context.Context)
}

type taxonomyRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewTaxonomyRepository returns a TaxonomyRepository. store may be nil.
func NewTaxonomyRepository(db *gorm.DB, store *cache.Store) TaxonomyRepository {
	return &taxonomyRepository{db: db, cache: store}
}

// ListTagCounts returns every tag used by at least one published post, most used first.
func (r *taxonomyRepository) ListTagCounts(ctx context.Context) ([]models.TagCount, error) {
	counts := make([]models.TagCount, 0)
	err := r.cache.Aside(ctx, "tags", cache.TagCountsKey, &counts, cache.TagCountsTTL, func() error {
		err := r.db.WithContext(ctx).
			Table("tags").
			Select("tags.name AS name, COUNT(DISTINCT posts.id) AS post_count").
			Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
			Joins("JOIN posts ON posts.id = post_tags.post_id AND posts.is_published = ?", true).
			Group("tags.name").
			Order("post_count DESC, tags.name ASC").
			Scan(&counts).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *taxonomyRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := make([]models.Category, 0)
	err := r.cache.Aside(ctx, "categories", cache.CategoriesKey, &categories, cache.CategoriesTTL, func() error {
		if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *taxonomyRepository) InvalidateTagCounts(ctx context.Context) {
	r.cache.Invalidate(ctx, cache.TagCountsKey)
}
