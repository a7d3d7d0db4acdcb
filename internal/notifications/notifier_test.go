package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: 1}))
	assert.NoError(t, n.StartPostEventSubscriber(context.Background(), func(string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated}))
}

func TestNotifier_PublishPostEventPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	payloads := make(chan string, 1)
	require.NoError(t, n.StartPostEventSubscriber(ctx, func(p string) { payloads <- p }))

	liked := true
	count := int64(3)
	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{
		Type: EventPostLiked, PostID: 2, ActorID: 5, Liked: &liked, LikesCount: &count,
	}))

	select {
	case p := <-payloads:
		var ev PostEvent
		require.NoError(t, json.Unmarshal([]byte(p), &ev))
		assert.Equal(t, EventPostLiked, ev.Type)
		assert.Equal(t, uint(2), ev.PostID)
		require.NotNil(t, ev.LikesCount)
		assert.Equal(t, int64(3), *ev.LikesCount)
		assert.False(t, ev.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartPostEventSubscriber(ctx, func(payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: 1}))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Drain the pre-cancel message to avoid false positives.
	select {
	case <-payloads:
	default:
	}

	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostUpdated, PostID: 1}))
	assert.Never(t, func() bool {
		select {
		case <-payloads:
			return true
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	var calls int32
	require.NoError(t, n.StartPostEventSubscriber(ctx, func(string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
	}))

	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: 1}))
	require.NoError(t, n.PublishPostEvent(context.Background(), PostEvent{Type: EventPostCreated, PostID: 2}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 10*time.Millisecond)
}
