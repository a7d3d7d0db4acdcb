package client

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Author is the user block embedded in posts and comments.
type Author struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// User is the account returned by the auth endpoints.
type User struct {
	Author
	Email     string     `json:"email"`
	Bio       string     `json:"bio,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type TagCount struct {
	Name      string `json:"name"`
	PostCount int64  `json:"post_count"`
}

type Comment struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	UserID    uint      `json:"user_id"`
	PostID    uint      `json:"post_id"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	User      Author    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Post struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	IsPublished   bool       `json:"is_published"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	ViewCount     int64      `json:"view_count"`
	UserID        uint       `json:"user_id"`
	User          Author     `json:"user"`
	CategoryID    *uint      `json:"category_id,omitempty"`
	Category      *Category  `json:"category,omitempty"`
	Tags          []string   `json:"tags"`
	LikesCount    int64      `json:"likes_count"`
	CommentsCount int64      `json:"comments_count"`
	Liked         bool       `json:"liked"`
	Comments      []*Comment `json:"comments,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// clone returns a copy that shares nothing mutable with p.
func (p *Post) clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	if p.Comments != nil {
		cp.Comments = make([]*Comment, len(p.Comments))
		for i, c := range p.Comments {
			cc := *c
			cp.Comments[i] = &cc
		}
	}
	if p.Category != nil {
		cat := *p.Category
		cp.Category = &cat
	}
	return &cp
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// PostList is one page of the listing.
type PostList struct {
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

func (l *PostList) clone() *PostList {
	if l == nil {
		return nil
	}
	cp := &PostList{Pagination: l.Pagination, Posts: make([]*Post, len(l.Posts))}
	for i, p := range l.Posts {
		cp.Posts[i] = p.clone()
	}
	return cp
}

// LikeResult is the server's like state after a toggle.
type LikeResult struct {
	Message    string `json:"message"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likes_count"`
}

type AuthResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type CreatePostInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	CategoryID *uint    `json:"category_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// UpdatePostInput is a partial update; nil fields are not sent.
type UpdatePostInput struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Excerpt    *string   `json:"excerpt,omitempty"`
	ImageURL   *string   `json:"image_url,omitempty"`
	CategoryID *uint     `json:"category_id,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
}

type CreateCommentInput struct {
	PostID   uint   `json:"post_id"`
	ParentID *uint  `json:"parent_id,omitempty"`
	Content  string `json:"content"`
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UpdateProfileInput is a partial update; nil fields are not sent.
type UpdateProfileInput struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// ListParams selects a page of the listing. Zero values take the server defaults.
type ListParams struct {
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
	Search     string
	Tags       []string
	AuthorID   uint
	CategoryID uint
}

// Normalized applies the same defaults and clamps as the server so that
// equivalent queries share a cache entry.
func (p ListParams) Normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	p.SortOrder = strings.ToUpper(p.SortOrder)
	if p.SortOrder != "ASC" {
		p.SortOrder = "DESC"
	}
	p.Search = strings.TrimSpace(p.Search)

	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	slices.Sort(tags)
	p.Tags = slices.Compact(tags)
	return p
}

// Key is the canonical cache key for the normalized tuple.
func (p ListParams) Key() string {
	n := p.Normalized()
	return fmt.Sprintf("posts:list:%d:%d:%s:%s:%s:%s:%d:%d",
		n.Page, n.Limit, n.SortBy, n.SortOrder,
		strconv.Quote(n.Search), strings.Join(n.Tags, ","),
		n.AuthorID, n.CategoryID)
}

func detailKey(postID uint) string {
	return "posts:detail:" + strconv.FormatUint(uint64(postID), 10)
}
