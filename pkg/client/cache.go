package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultCacheTime = 10 * time.Minute

	listKeyPrefix = "posts:list:"
)

// API is the subset of Client that Cache drives.
type API interface {
	ListPosts(ctx context.Context, p ListParams) (*PostList, error)
	GetPost(ctx context.Context, id uint) (*Post, error)
	CreatePost(ctx context.Context, in CreatePostInput) (*Post, error)
	UpdatePost(ctx context.Context, id uint, in UpdatePostInput) (*Post, error)
	DeletePost(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, id uint) (*LikeResult, error)
	CreateComment(ctx context.Context, in CreateCommentInput) (*Comment, error)
	UpdateComment(ctx context.Context, id uint, content string) (*Comment, error)
	DeleteComment(ctx context.Context, id uint) error
}

type entry struct {
	list *PostList
	post *Post

	fetchedAt   time.Time
	invalidated bool
}

// likeSnapshot is the exact pre-toggle state of one cached copy of a post.
type likeSnapshot struct {
	post  *Post
	liked bool
	likes int64
}

// Cache keeps listing pages keyed by their normalized query tuple and post
// details keyed by id.
//
// Entries older than the stale time are still served, but reading one starts
// a background refetch. Entries older than the cache time are dropped. Every
// fetch takes a per-key generation and only stores its result if no newer
// fetch or invalidation happened in the meantime.
type Cache struct {
	api            API
	staleTime      time.Duration
	cacheTime      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	flight singleflight.Group
	wg     sync.WaitGroup

	mu       sync.Mutex
	entries  map[string]*entry
	gens     map[string]uint64
	likeGens map[uint]uint64
}

type CacheOption func(*Cache)

func WithStaleTime(d time.Duration) CacheOption {
	return func(c *Cache) { c.staleTime = d }
}

func WithCacheTime(d time.Duration) CacheOption {
	return func(c *Cache) { c.cacheTime = d }
}

// WithRefreshTimeout bounds each background refetch.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *Cache) { c.refreshTimeout = d }
}

func NewCache(api API, opts ...CacheOption) *Cache {
	c := &Cache{
		api:            api,
		staleTime:      DefaultStaleTime,
		cacheTime:      DefaultCacheTime,
		refreshTimeout: 30 * time.Second,
		now:            time.Now,
		entries:        make(map[string]*entry),
		gens:           make(map[string]uint64),
		likeGens:       make(map[uint]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wait blocks until in-flight background refetches finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Posts returns a listing page, from cache when possible.
func (c *Cache) Posts(ctx context.Context, p ListParams) (*PostList, error) {
	key := p.Key()
	fetch := func(ctx context.Context) (interface{}, error) { return c.api.ListPosts(ctx, p) }

	c.mu.Lock()
	c.evictLocked()
	if e, ok := c.entries[key]; ok && e.list != nil {
		out := e.list.clone()
		if c.staleLocked(e) {
			c.refreshLocked(key, fetch)
		}
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	v, err := c.load(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	return v.(*PostList).clone(), nil
}

// Post returns a post detail, from cache when possible.
func (c *Cache) Post(ctx context.Context, id uint) (*Post, error) {
	key := detailKey(id)
	fetch := func(ctx context.Context) (interface{}, error) { return c.api.GetPost(ctx, id) }

	c.mu.Lock()
	c.evictLocked()
	if e, ok := c.entries[key]; ok && e.post != nil {
		out := e.post.clone()
		if c.staleLocked(e) {
			c.refreshLocked(key, fetch)
		}
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	v, err := c.load(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	return v.(*Post).clone(), nil
}

// CachedPosts returns the cached page without fetching.
func (c *Cache) CachedPosts(p ListParams) (*PostList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[p.Key()]
	if !ok || e.list == nil {
		return nil, false
	}
	return e.list.clone(), true
}

// CachedPost returns the cached detail without fetching.
func (c *Cache) CachedPost(id uint) (*Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[detailKey(id)]
	if !ok || e.post == nil {
		return nil, false
	}
	return e.post.clone(), true
}

// load fetches key once for all concurrent callers and stores the result
// unless the key's generation moved while the request was in flight.
func (c *Cache) load(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		c.gens[key]++
		gen := c.gens[key]
		c.mu.Unlock()

		v, err := fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[key] != gen {
			return v, err
		}
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				delete(c.entries, key)
			}
			return nil, err
		}

		e := &entry{fetchedAt: c.now()}
		switch val := v.(type) {
		case *PostList:
			e.list = val.clone()
		case *Post:
			e.post = val.clone()
		}
		c.entries[key] = e
		return v, nil
	})
	return v, err
}

func (c *Cache) refreshLocked(key string, fetch func(context.Context) (interface{}, error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()
		// a failed refetch leaves the stale value in place
		_, _ = c.load(ctx, key, fetch)
	}()
}

func (c *Cache) staleLocked(e *entry) bool {
	return e.invalidated || c.now().Sub(e.fetchedAt) >= c.staleTime
}

func (c *Cache) evictLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.cacheTime {
			delete(c.entries, key)
		}
	}
}

// InvalidateLists marks every listing page stale and discards in-flight list fetches.
func (c *Cache) InvalidateLists() {
	c.mu.Lock()
	c.invalidateListsLocked()
	c.mu.Unlock()
}

// InvalidatePost marks the post's detail and every listing page stale.
func (c *Cache) InvalidatePost(id uint) {
	c.mu.Lock()
	c.invalidatePostLocked(id, false)
	c.mu.Unlock()
}

func (c *Cache) invalidateListsLocked() {
	for key, e := range c.entries {
		if strings.HasPrefix(key, listKeyPrefix) {
			e.invalidated = true
		}
	}
	for key := range c.gens {
		if strings.HasPrefix(key, listKeyPrefix) {
			c.gens[key]++
		}
	}
}

func (c *Cache) invalidatePostLocked(id uint, drop bool) {
	c.invalidateListsLocked()
	key := detailKey(id)
	c.gens[key]++
	if drop {
		delete(c.entries, key)
		return
	}
	if e, ok := c.entries[key]; ok {
		e.invalidated = true
	}
}

// copiesLocked returns every cached instance of the post.
func (c *Cache) copiesLocked(id uint) []*Post {
	var out []*Post
	if e, ok := c.entries[detailKey(id)]; ok && e.post != nil {
		out = append(out, e.post)
	}
	for key, e := range c.entries {
		if !strings.HasPrefix(key, listKeyPrefix) || e.list == nil {
			continue
		}
		for _, p := range e.list.Posts {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out
}

// ToggleLike flips the cached like state immediately, then reconciles it with
// the server's answer. On failure every cached copy goes back to the exact
// values it had before the toggle. A newer toggle of the same post supersedes
// this one, so its late reconcile or rollback is dropped.
func (c *Cache) ToggleLike(ctx context.Context, id uint) (*LikeResult, error) {
	c.mu.Lock()
	c.likeGens[id]++
	gen := c.likeGens[id]

	copies := c.copiesLocked(id)
	snapshot := make([]likeSnapshot, 0, len(copies))
	for _, p := range copies {
		snapshot = append(snapshot, likeSnapshot{post: p, liked: p.Liked, likes: p.LikesCount})
		if p.Liked {
			p.LikesCount--
		} else {
			p.LikesCount++
		}
		p.Liked = !p.Liked
	}
	// fetches already in flight predate the toggle
	c.bumpPostGensLocked(id)
	c.mu.Unlock()

	res, err := c.api.ToggleLike(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.likeGens[id] != gen {
		return res, err
	}
	if err != nil {
		for _, s := range snapshot {
			s.post.Liked = s.liked
			s.post.LikesCount = s.likes
		}
		return nil, err
	}

	for _, p := range c.copiesLocked(id) {
		p.Liked = res.Liked
		p.LikesCount = res.LikesCount
	}
	c.invalidatePostLocked(id, false)
	return res, nil
}

func (c *Cache) bumpPostGensLocked(id uint) {
	c.gens[detailKey(id)]++
	for key := range c.gens {
		if strings.HasPrefix(key, listKeyPrefix) {
			c.gens[key]++
		}
	}
}

func (c *Cache) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	post, err := c.api.CreatePost(ctx, in)
	if err != nil {
		return nil, err
	}
	c.InvalidateLists()
	return post, nil
}

func (c *Cache) UpdatePost(ctx context.Context, id uint, in UpdatePostInput) (*Post, error) {
	post, err := c.api.UpdatePost(ctx, id, in)
	if err != nil {
		return nil, err
	}
	c.InvalidatePost(id)
	return post, nil
}

func (c *Cache) DeletePost(ctx context.Context, id uint) error {
	if err := c.api.DeletePost(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	c.invalidatePostLocked(id, true)
	c.mu.Unlock()
	return nil
}

func (c *Cache) CreateComment(ctx context.Context, in CreateCommentInput) (*Comment, error) {
	comment, err := c.api.CreateComment(ctx, in)
	if err != nil {
		return nil, err
	}
	c.InvalidatePost(in.PostID)
	return comment, nil
}

func (c *Cache) UpdateComment(ctx context.Context, id uint, content string) (*Comment, error) {
	comment, err := c.api.UpdateComment(ctx, id, content)
	if err != nil {
		return nil, err
	}
	c.InvalidatePost(comment.PostID)
	return comment, nil
}

// DeleteComment removes a comment of postID. The server does not echo the post,
// so the caller names it.
func (c *Cache) DeleteComment(ctx context.Context, postID, commentID uint) error {
	if err := c.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	c.InvalidatePost(postID)
	return nil
}
