package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/middleware"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/redis/go-redis/v9"
)

const defaultViewTimeout = 5 * time.Second

// ViewRecorder counts a successful post read.
type ViewRecorder interface {
	Record(ctx context.Context, postID uint)
}

// ViewCounter increments post view counts off the request path. In direct mode
// each view is one UPDATE; in buffered mode views accumulate in a Redis hash that
// the view sync task flushes. Failures are logged and counted, never returned.
type ViewCounter struct {
	mode    string
	posts   repository.PostRepository
	rdb     *redis.Client
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewViewCounter builds a counter. Buffered mode without a Redis client falls back to direct.
func NewViewCounter(mode string, posts repository.PostRepository, rdb *redis.Client) *ViewCounter {
	if mode != config.ViewCounterBuffered || rdb == nil {
		mode = config.ViewCounterDirect
	}
	return &ViewCounter{
		mode:    mode,
		posts:   posts,
		rdb:     rdb,
		timeout: defaultViewTimeout,
	}
}

// Mode reports the effective counter mode.
func (v *ViewCounter) Mode() string {
	return v.mode
}

// Record increments the view count of postID asynchronously. The work is detached
// from ctx cancellation so finishing the response does not abort it.
func (v *ViewCounter) Record(ctx context.Context, postID uint) {
	detached := context.WithoutCancel(ctx)
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(detached, v.timeout)
		defer cancel()
		v.record(ctx, postID)
	}()
}

func (v *ViewCounter) record(ctx context.Context, postID uint) {
	if v.mode == config.ViewCounterBuffered {
		err := v.rdb.HIncrBy(ctx, cache.PendingViewsKey, strconv.FormatUint(uint64(postID), 10), 1).Err()
		if err == nil {
			observability.PostViews.WithLabelValues(v.mode, "ok").Inc()
			return
		}
		observability.PostViews.WithLabelValues(v.mode, "error").Inc()
		middleware.Logger.WarnContext(ctx, "buffered view increment failed, writing directly",
			slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
	}

	if err := v.posts.IncrementViewCount(ctx, postID, 1); err != nil {
		observability.PostViews.WithLabelValues(config.ViewCounterDirect, "error").Inc()
		middleware.Logger.WarnContext(ctx, "view count increment failed",
			slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return
	}
	observability.PostViews.WithLabelValues(config.ViewCounterDirect, "ok").Inc()
}

// Wait blocks until every in-flight increment has finished.
func (v *ViewCounter) Wait() {
	v.wg.Wait()
}
