package repository

import (
	"context"
	"testing"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyRepository_ListTagCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTaxonomyRepository(db, nil)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "tagger")
	testutil.CreatePost(t, db, u.ID, "One", "Body", "go", "web")
	testutil.CreatePost(t, db, u.ID, "Two", "Body", "go")
	draft := testutil.CreateDraft(t, db, u.ID, "Hidden")
	var hidden models.Tag
	require.NoError(t, db.Where(models.Tag{Name: "hidden"}).FirstOrCreate(&hidden).Error)
	require.NoError(t, db.Omit("Post", "Tag").Create(&models.PostTag{PostID: draft.ID, TagID: hidden.ID}).Error)

	counts, err := repo.ListTagCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Name: "go", PostCount: 2}, {Name: "web", PostCount: 1}}, counts)
}

func TestTaxonomyRepository_ListCategoriesCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewSQLiteDB(t)
	repo := NewTaxonomyRepository(db, cache.NewStore(rdb))
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Category{Name: "Tutorials"}).Error)
	require.NoError(t, db.Create(&models.Category{Name: "News"}).Error)

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "News", cats[0].Name)
	assert.True(t, mr.Exists(cache.CategoriesKey))

	require.NoError(t, db.Create(&models.Category{Name: "Opinion"}).Error)
	cats, err = repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2, "served from cache until expiry")

	mr.FastForward(cache.CategoriesTTL + 1)
	cats, err = repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)
}
