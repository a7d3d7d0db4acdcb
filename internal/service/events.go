package service

import (
	"context"
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/notifications"
)

// EventPublisher fans post activity out to realtime subscribers.
type EventPublisher interface {
	PublishPostEvent(ctx context.Context, ev notifications.PostEvent) error
}

// publish is best effort: failures are logged and never reach the caller.
func publish(ctx context.Context, events EventPublisher, ev notifications.PostEvent) {
	if events == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := events.PublishPostEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish post event",
			slog.String("type", ev.Type),
			slog.Uint64("post_id", uint64(ev.PostID)),
			slog.String("error", err.Error()))
	}
}
