// Package bootstrap wires the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs migrations according to DB_SCHEMA_MODE before returning.
	ApplySchema bool
	// SkipRedis leaves the Redis client nil, for tools that only touch the database.
	SkipRedis bool
}

// Runtime holds the process-wide handles. Close releases them in reverse order.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime starts tracing and connects to the database and Redis.
// Redis is optional: when it is unreachable Runtime.Redis is nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "quill-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			_ = database.Close(db)
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("schema setup failed: %w", err)
		}
	}

	rt := &Runtime{DB: db, shutdownTracing: shutdownTracing}
	if !opts.SkipRedis {
		rt.Redis = cache.Connect(ctx, cfg.RedisURL)
	}
	return rt, nil
}

// Close shuts down Redis, the database and the tracer provider.
func (r *Runtime) Close(ctx context.Context) {
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}
	if err := database.Close(r.DB); err != nil {
		log.Printf("error closing sql DB: %v", err)
	}
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			log.Printf("error shutting down tracer: %v", err)
		}
	}
}
