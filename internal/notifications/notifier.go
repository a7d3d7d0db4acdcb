// Package notifications provides real-time delivery of post activity.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
)

// PostEventsChannel is the Redis channel every API instance publishes to and subscribes on.
const PostEventsChannel = "events:posts"

// Post event types.
const (
	EventPostCreated    = "post_created"
	EventPostUpdated    = "post_updated"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventCommentCreated = "comment_created"
	EventCommentUpdated = "comment_updated"
	EventCommentDeleted = "comment_deleted"
)

// PostEvent is the payload fanned out to WebSocket clients. Clients use it to
// invalidate cached lists and details.
type PostEvent struct {
	Type       string    `json:"type"`
	PostID     uint      `json:"post_id"`
	CommentID  uint      `json:"comment_id,omitempty"`
	ActorID    uint      `json:"actor_id"`
	Liked      *bool     `json:"liked,omitempty"`
	LikesCount *int64    `json:"likes_count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes post events into Redis. A Notifier without a client is a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishPostEvent serializes ev and publishes it on PostEventsChannel.
func (n *Notifier) PublishPostEvent(ctx context.Context, ev PostEvent) error {
	if n == nil || n.rdb == nil {
		observability.EventsPublished.WithLabelValues(ev.Type, "skipped").Inc()
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal post event: %w", err)
	}
	if err := n.rdb.Publish(ctx, PostEventsChannel, payload).Err(); err != nil {
		observability.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	observability.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
	return nil
}

// StartPostEventSubscriber subscribes to PostEventsChannel and calls onMessage for
// each payload until ctx is cancelled.
func (n *Notifier) StartPostEventSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, PostEventsChannel)
	// wait for the subscription to be confirmed so no early publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", PostEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in post event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
