// Package client is a Go SDK for the Quill API. Client issues the HTTP calls;
// Cache layers TTL caching and optimistic like toggling on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"error"`
	Code       string            `json:"code"`
	Fields     map[string]string `json:"fields"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("quill: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("quill: %d: %s", e.StatusCode, e.Message)
}

// Client talks to the REST API under baseURL (for example http://localhost:8080/api).
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func listValues(p ListParams) url.Values {
	n := p.Normalized()
	v := url.Values{}
	v.Set("page", strconv.Itoa(n.Page))
	v.Set("limit", strconv.Itoa(n.Limit))
	v.Set("sortBy", n.SortBy)
	v.Set("sortOrder", n.SortOrder)
	if n.Search != "" {
		v.Set("search", n.Search)
	}
	if len(n.Tags) > 0 {
		v.Set("tags", strings.Join(n.Tags, ","))
	}
	if n.AuthorID != 0 {
		v.Set("authorId", strconv.FormatUint(uint64(n.AuthorID), 10))
	}
	if n.CategoryID != 0 {
		v.Set("categoryId", strconv.FormatUint(uint64(n.CategoryID), 10))
	}
	return v
}

func postPath(id uint) string {
	return "/posts/" + strconv.FormatUint(uint64(id), 10)
}

func commentPath(id uint) string {
	return "/comments/" + strconv.FormatUint(uint64(id), 10)
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, in, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes the supplied profile fields of the current user.
func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/auth/profile", nil, in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListPosts(ctx context.Context, p ListParams) (*PostList, error) {
	var list PostList
	if err := c.do(ctx, http.MethodGet, "/posts", listValues(p), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetPost(ctx context.Context, id uint) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodGet, postPath(id), nil, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id uint, in UpdatePostInput) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodPut, postPath(id), nil, in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, postPath(id), nil, nil, nil)
}

func (c *Client) ToggleLike(ctx context.Context, id uint) (*LikeResult, error) {
	var res LikeResult
	if err := c.do(ctx, http.MethodPost, postPath(id)+"/like", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListComments(ctx context.Context, postID uint) ([]*Comment, error) {
	var comments []*Comment
	path := "/comments/post/" + strconv.FormatUint(uint64(postID), 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, in CreateCommentInput) (*Comment, error) {
	var comment Comment
	if err := c.do(ctx, http.MethodPost, "/comments", nil, in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment replaces the content of one of the caller's comments.
func (c *Client) UpdateComment(ctx context.Context, id uint, content string) (*Comment, error) {
	var comment Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPut, commentPath(id), nil, body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, commentPath(id), nil, nil, nil)
}

func (c *Client) Tags(ctx context.Context) ([]TagCount, error) {
	var tags []TagCount
	if err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
