package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListParamsKey(t *testing.T) {
	base := ListParams{Tags: []string{"Go", "redis"}, SortOrder: "asc"}

	same := []ListParams{
		{Page: 1, Limit: 10, SortBy: "created_at", SortOrder: "ASC", Tags: []string{"redis", "go"}},
		{Page: -3, Tags: []string{" GO ", "redis", "go"}, SortOrder: "Asc"},
	}
	for _, p := range same {
		assert.Equal(t, base.Key(), p.Key())
	}

	different := []ListParams{
		{Tags: []string{"go"}, SortOrder: "asc"},
		{Tags: []string{"go", "redis"}},
		{Tags: []string{"go", "redis"}, SortOrder: "asc", Page: 2},
		{Tags: []string{"go", "redis"}, SortOrder: "asc", AuthorID: 4},
		{Tags: []string{"go", "redis"}, SortOrder: "asc", Search: "x"},
	}
	for _, p := range different {
		assert.NotEqual(t, base.Key(), p.Key())
	}

	assert.Equal(t, 100, ListParams{Limit: 500}.Normalized().Limit)
	assert.Equal(t, "DESC", ListParams{SortOrder: "sideways"}.Normalized().SortOrder)
}

func TestClientListPosts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "title", q.Get("sortBy"))
		assert.Equal(t, "ASC", q.Get("sortOrder"))
		assert.Equal(t, "api,go", q.Get("tags"))
		assert.Equal(t, "7", q.Get("authorId"))
		assert.Empty(t, q.Get("categoryId"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(PostList{
			Posts:      []*Post{{ID: 1, Title: "hello", Tags: []string{"go"}}},
			Pagination: Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 11, Limit: 5, HasNextPage: true, HasPrevPage: true},
		})
	}))
	defer ts.Close()

	c := New(ts.URL+"/api", WithToken("tok"))
	list, err := c.ListPosts(context.Background(), ListParams{
		Page: 2, Limit: 5, SortBy: "title", SortOrder: "asc", Tags: []string{"go", "API"}, AuthorID: 7,
	})
	require.NoError(t, err)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "hello", list.Posts[0].Title)
	assert.Equal(t, int64(11), list.Pagination.TotalItems)
	assert.True(t, list.Pagination.HasNextPage)
}

func TestClientErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts/1":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"You can only modify your own posts","code":"FORBIDDEN"}`))
		case "/posts":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Validation failed","code":"VALIDATION_ERROR","fields":{"title":"is required"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	ctx := context.Background()

	err := c.DeletePost(ctx, 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Equal(t, "You can only modify your own posts", apiErr.Message)

	_, err = c.CreatePost(ctx, CreatePostInput{})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, map[string]string{"title": "is required"}, apiErr.Fields)

	_, err = c.Tags(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestClientLoginKeepsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])
			_, _ = w.Write([]byte(`{"user":{"id":3,"username":"ada","email":"ada@example.com"},"token":"jwt-abc"}`))
		case "/auth/profile":
			if r.Header.Get("Authorization") != "Bearer jwt-abc" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Missing token","code":"UNAUTHORIZED"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":3,"username":"ada","email":"ada@example.com"}`))
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	res, err := c.Login(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ada", res.User.Username)
	assert.Equal(t, "jwt-abc", c.Token())

	u, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(3), u.ID)
}

func TestClientCommentAndProfileUpdates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/comments/7":
			assert.Equal(t, map[string]interface{}{"content": "fixed typo"}, body)
			_, _ = w.Write([]byte(`{"id":7,"post_id":2,"content":"fixed typo"}`))
		case "/auth/profile":
			assert.Equal(t, map[string]interface{}{"bio": "gopher"}, body, "nil fields are omitted")
			_, _ = w.Write([]byte(`{"id":3,"username":"ada","bio":"gopher"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := New(ts.URL, WithToken("jwt"))
	comment, err := c.UpdateComment(context.Background(), 7, "fixed typo")
	require.NoError(t, err)
	assert.Equal(t, uint(2), comment.PostID)
	assert.Equal(t, "fixed typo", comment.Content)

	bio := "gopher"
	u, err := c.UpdateProfile(context.Background(), UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "gopher", u.Bio)
}

func TestPostCloneIsDeep(t *testing.T) {
	p := &Post{ID: 1, Tags: []string{"go"}, Comments: []*Comment{{ID: 9, Content: "hi"}}, Category: &Category{ID: 2, Name: "Eng"}}
	cp := p.clone()
	cp.Tags[0] = "rust"
	cp.Comments[0].Content = "changed"
	cp.Category.Name = "Ops"

	assert.Equal(t, "go", p.Tags[0])
	assert.Equal(t, "hi", p.Comments[0].Content)
	assert.Equal(t, "Eng", p.Category.Name)
}
