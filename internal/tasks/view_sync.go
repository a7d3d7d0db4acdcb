// Package tasks holds scheduled background jobs.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const runTimeout = 3 * time.Minute

// ViewIncrementer persists a view count delta for one post.
type ViewIncrementer interface {
	IncrementViewCount(ctx context.Context, postID uint, delta int64) error
}

// ViewSyncTask periodically moves buffered view counts from Redis into the database.
type ViewSyncTask struct {
	rdb      *redis.Client
	posts    ViewIncrementer
	schedule string
	cron     *cron.Cron
}

// NewViewSyncTask builds the task; call Start to schedule it.
func NewViewSyncTask(rdb *redis.Client, posts ViewIncrementer, schedule string) *ViewSyncTask {
	return &ViewSyncTask{
		rdb:      rdb,
		posts:    posts,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the job on its schedule and starts the scheduler.
func (t *ViewSyncTask) Start() error {
	entryID, err := t.cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		start := time.Now()
		synced, err := t.RunOnce(ctx)
		if err != nil {
			observability.ViewSyncRuns.WithLabelValues("error").Inc()
			middleware.Logger.Error("view count sync failed", slog.String("error", err.Error()))
			return
		}
		observability.ViewSyncRuns.WithLabelValues("ok").Inc()
		if synced > 0 {
			middleware.Logger.Info("view count sync finished",
				slog.Int("posts", synced), slog.Duration("duration", time.Since(start)))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule view sync %q: %w", t.schedule, err)
	}

	t.cron.Start()
	middleware.Logger.Info("view count sync scheduled",
		slog.String("schedule", t.schedule), slog.Int("entry_id", int(entryID)))
	return nil
}

// Stop stops scheduling and returns a context that is done once a running job finishes.
func (t *ViewSyncTask) Stop() context.Context {
	return t.cron.Stop()
}

// RunOnce claims the pending hash, applies every delta and returns the number of
// posts updated. Views recorded while a run is in progress land in a fresh pending
// hash. A failed delta is put back so the next run retries it.
func (t *ViewSyncTask) RunOnce(ctx context.Context) (int, error) {
	// a leftover flushing hash means an earlier run died mid-way; finish it first
	leftover, err := t.rdb.Exists(ctx, cache.FlushingViewsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("check flushing views: %w", err)
	}
	if leftover == 0 {
		if err := t.rdb.Rename(ctx, cache.PendingViewsKey, cache.FlushingViewsKey).Err(); err != nil {
			if isNoSuchKey(err) {
				return 0, nil
			}
			return 0, fmt.Errorf("claim pending views: %w", err)
		}
	}

	deltas, err := t.rdb.HGetAll(ctx, cache.FlushingViewsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("read flushing views: %w", err)
	}

	synced := 0
	var failed []error
	for field, raw := range deltas {
		postID, perr := strconv.ParseUint(field, 10, 64)
		delta, derr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || derr != nil || postID == 0 || delta <= 0 {
			middleware.Logger.Warn("dropping malformed view delta", slog.String("post", field), slog.String("delta", raw))
			continue
		}
		if err := t.posts.IncrementViewCount(ctx, uint(postID), delta); err != nil {
			failed = append(failed, err)
			if rerr := t.rdb.HIncrBy(ctx, cache.PendingViewsKey, field, delta).Err(); rerr != nil {
				middleware.Logger.Error("lost view delta", slog.String("post", field), slog.Int64("delta", delta),
					slog.String("error", rerr.Error()))
			}
			continue
		}
		synced++
	}

	if err := t.rdb.Del(ctx, cache.FlushingViewsKey).Err(); err != nil {
		return synced, fmt.Errorf("release flushing views: %w", err)
	}
	return synced, errors.Join(failed...)
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such key")
}
