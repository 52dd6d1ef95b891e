package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	readinessTimeout = 5 * time.Second

	checkHealthy     = "healthy"
	checkUnhealthy   = "unhealthy"
	checkUnavailable = "unavailable"
)

// LivenessCheck answers as long as the process serves HTTP.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now()})
}

// ReadinessCheck pings Postgres and Redis. Redis is optional: without it
// locks, presence and fan-out stay process-local, so "unavailable" is still
// ready while a configured Redis that fails to answer is not.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{
		"database": s.pingDatabase(ctx),
		"redis":    s.pingRedis(ctx),
	}
	overall, status := checkHealthy, fiber.StatusOK
	for _, v := range checks {
		if v == checkUnhealthy {
			overall, status = checkUnhealthy, fiber.StatusServiceUnavailable
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "ScholarHub",
		"version": "1.0.0",
		"status":  overall,
		"checks":  checks,
		"time":    time.Now(),
	})
}

func (s *Server) pingDatabase(ctx context.Context) string {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return checkUnhealthy
	}
	return checkHealthy
}

func (s *Server) pingRedis(ctx context.Context) string {
	if s.redis == nil {
		return checkUnavailable
	}
	if s.redis.Ping(ctx).Err() != nil {
		return checkUnhealthy
	}
	return checkHealthy
}
