package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateAndList(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "blogger")
	reader := testutil.CreateUser(t, db, "commenter")
	post := testutil.CreatePost(t, db, author.ID, "Thread", "Body")
	other := testutil.CreatePost(t, db, author.ID, "Other", "Body")

	older := &models.Comment{Content: "first", PostID: post.ID, UserID: reader.ID, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, older))
	newer := &models.Comment{Content: "second", PostID: post.ID, UserID: author.ID, ParentID: &older.ID}
	require.NoError(t, repo.Create(ctx, newer))
	testutil.Comment(t, db, reader.ID, other.ID, "elsewhere")

	comments, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "commenter", comments[0].User.Username)
	assert.Equal(t, "second", comments[1].Content)
	assert.Equal(t, "blogger", comments[1].User.Username)
	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, older.ID, *comments[1].ParentID)

	empty, err := repo.ListByPost(ctx, 9999)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCommentRepository_UpdateDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "editor")
	post := testutil.CreatePost(t, db, author.ID, "Edits", "Body")
	c := testutil.Comment(t, db, author.ID, post.ID, "typo")

	require.NoError(t, repo.Update(ctx, c.ID, "fixed"))
	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
	assert.Equal(t, "editor", got.User.Username)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assertCode(t, err, models.CodeNotFound)

	assertCode(t, repo.Update(ctx, c.ID, "again"), models.CodeNotFound)
	assertCode(t, repo.Delete(ctx, c.ID), models.CodeNotFound)
}

func TestCommentRepository_CreateSQL(t *testing.T) {
	db, mock := mockPostgres(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "Nice post!", PostID: 1, UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
