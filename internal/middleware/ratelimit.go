package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a Limiter does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed rejects the request with 503.
	FailClosed
)

var errNoRedis = errors.New("rate limit store not configured")

// Decision is the outcome of counting one hit against a window.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter stored under rl:<name>:<identity>.
type Limiter struct {
	rdb    *redis.Client
	name   string
	limit  int
	window time.Duration
	policy FailPolicy
}

// NewLimiter returns a fail-open limiter allowing limit hits per window.
func NewLimiter(rdb *redis.Client, name string, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, name: name, limit: limit, window: window, policy: FailOpen}
}

// WithPolicy returns a copy of the limiter using policy.
func (l *Limiter) WithPolicy(policy FailPolicy) *Limiter {
	cp := *l
	cp.policy = policy
	return &cp
}

func enforcementDisabled() bool {
	env := os.Getenv("APP_ENV")
	if cfg != nil && cfg.Env != "" {
		env = cfg.Env
	}
	return env == "" || env == "development" || env == "test"
}

// Allow records a hit for identity. Development and test environments are
// never limited.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	if enforcementDisabled() {
		return Decision{Allowed: true, Remaining: l.limit}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	key := "rl:" + l.name + ":" + identity
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("count hit: %w", err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// first hit in this window
		if err := l.rdb.PExpire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("start window: %w", err)
		}
		ttl = l.window
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= l.limit, Remaining: max(l.limit-count, 0)}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// Handler limits per authenticated user, falling back to the client IP.
func (l *Limiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			identity = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		d, err := l.Allow(c.UserContext(), identity)
		if err != nil {
			if l.policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limiter unavailable, rejecting",
				slog.String("limiter", l.name),
				slog.String("error", err.Error()),
			)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Rate limiter unavailable")
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(secs, 1)))
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests")
		}
		return c.Next()
	}
}

// RateLimit is shorthand for NewLimiter(...).Handler().
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return NewLimiter(rdb, name, limit, window).Handler()
}
