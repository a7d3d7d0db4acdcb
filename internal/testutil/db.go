// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quill/internal/database"
	"quill/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory SQLite database with foreign keys
// enforced and the full schema migrated.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quilltest_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts an active user with the given username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$abcdefghijklmnopqrstuv",
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a published post authored by userID. Tags are attached by name.
func CreatePost(t *testing.T, db *gorm.DB, userID uint, title, content string, tags ...string) *models.Post {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Post{
		Title:       title,
		Content:     content,
		UserID:      userID,
		IsPublished: true,
		PublishedAt: &now,
	}
	require.NoError(t, db.Omit("User", "Category").Create(p).Error)

	for _, name := range tags {
		tag := models.Tag{Name: strings.ToLower(name)}
		require.NoError(t, db.Where(models.Tag{Name: tag.Name}).FirstOrCreate(&tag).Error)
		require.NoError(t, db.Omit("Post", "Tag").Create(&models.PostTag{PostID: p.ID, TagID: tag.ID}).Error)
	}
	return p
}

// CreateDraft inserts an unpublished post.
func CreateDraft(t *testing.T, db *gorm.DB, userID uint, title string) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, Content: "draft body", UserID: userID}
	require.NoError(t, db.Omit("User", "Category").Create(p).Error)
	return p
}

// Like records a like of postID by userID.
func Like(t *testing.T, db *gorm.DB, userID, postID uint) {
	t.Helper()
	require.NoError(t, db.Omit("User", "Post").Create(&models.Like{UserID: userID, PostID: postID}).Error)
}

// Comment inserts a comment and returns it.
func Comment(t *testing.T, db *gorm.DB, userID, postID uint, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{UserID: userID, PostID: postID, Content: content}
	require.NoError(t, db.Omit("User", "Post", "Parent").Create(c).Error)
	return c
}
