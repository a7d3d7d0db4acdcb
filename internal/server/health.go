package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 5 * time.Second

// Probe states reported under "checks".
const (
	probeHealthy     = "healthy"
	probeUnhealthy   = "unhealthy"
	probeUnavailable = "unavailable"
)

type probe struct {
	name string
	// nil means the dependency is not configured
	ping func(ctx context.Context) error
}

func (s *Server) probes() []probe {
	db := probe{name: "database", ping: func(ctx context.Context) error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
	cache := probe{name: "redis"}
	if s.redis != nil {
		cache.ping = func(ctx context.Context) error { return s.redis.Ping(ctx).Err() }
	}
	return []probe{db, cache}
}

// LivenessCheck handles GET /health/live
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,time=string}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// ReadinessCheck handles GET /health/ready. Dependencies are pinged in
// parallel; an unconfigured Redis is reported but does not fail readiness.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,checks=map[string]string,view_counter=string}
// @Failure 503 {object} object{status=string,checks=map[string]string,view_counter=string}
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	probes := s.probes()
	states := make([]string, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		if p.ping == nil {
			states[i] = probeUnavailable
			continue
		}
		g.Go(func() error {
			states[i] = probeHealthy
			if err := p.ping(ctx); err != nil {
				states[i] = probeUnhealthy
			}
			return nil
		})
	}
	_ = g.Wait()

	code, overall := fiber.StatusOK, probeHealthy
	checks := make(fiber.Map, len(probes))
	for i, p := range probes {
		checks[p.name] = states[i]
		if states[i] == probeUnhealthy {
			code, overall = fiber.StatusServiceUnavailable, probeUnhealthy
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       overall,
		"checks":       checks,
		"view_counter": s.views.Mode(),
		"time":         time.Now().UTC(),
	})
}
