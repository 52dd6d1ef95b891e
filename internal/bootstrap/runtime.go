// Package bootstrap wires the storage dependencies a process needs at startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"scholarhub/internal/cache"
	"scholarhub/internal/config"
	"scholarhub/internal/database"
	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/seed"
	"scholarhub/internal/workflow"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultRootEmail is used when DEV_ROOT_EMAIL is unset.
const DefaultRootEmail = "root@scholarhub.local"

var errNoRootPassword = errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")

// Options control what Init does beyond connecting.
type Options struct {
	// SeedCatalog loads the built-in scholarship listings.
	SeedCatalog bool
}

// Runtime is the storage a server process runs on. Redis is nil when the
// server is unreachable.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// Init connects to Postgres and Redis, ensures the development root admin
// and optionally loads the catalog.
func Init(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	cache.InitRedis(cfg.RedisURL)
	rt := &Runtime{DB: db, Redis: cache.GetClient()}

	if err := EnsureDevRootAdmin(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		return nil, fmt.Errorf("bootstrap root admin: %w", err)
	}
	if opts.SeedCatalog {
		if _, err := seed.Catalog(db, rootEmail(cfg)); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	return rt, nil
}

// Close releases the connections Init opened.
func (rt *Runtime) Close() error {
	var errs []error
	if sqlDB, err := rt.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	return errors.Join(errs...)
}

func rootEmail(cfg *config.Config) string {
	if email := strings.ToLower(strings.TrimSpace(cfg.DevRootEmail)); email != "" {
		return email
	}
	return DefaultRootEmail
}

// EnsureDevRootAdmin creates, or promotes, the admin account named by
// DEV_ROOT_EMAIL. It only acts in development with DEV_BOOTSTRAP_ROOT set.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg.Env != "development" || !cfg.DevBootstrapRoot {
		return nil
	}
	if cfg.DevRootPassword == "" {
		return errNoRootPassword
	}
	email := rootEmail(cfg)
	log := slog.With(slog.String("component", "bootstrap"), slog.String("email", email))

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch {
	case existing == nil:
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash root password: %w", err)
		}
		root := &models.User{Name: "ScholarHub Root", Email: email, Password: string(hash), Role: workflow.RoleAdmin}
		if err := users.Create(ctx, root); err != nil {
			return err
		}
		log.Info("root admin created")
	case existing.Role != workflow.RoleAdmin:
		if err := users.UpdateRole(ctx, existing.ID, workflow.RoleAdmin); err != nil {
			return err
		}
		log.Info("root admin promoted", slog.String("from", string(existing.Role)))
	}
	return nil
}
