// Package database opens the Postgres connections and owns the schema:
// embedded SQL migrations, the AutoMigrate policy and the status report.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"scholarhub/internal/config"
	"scholarhub/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var replica atomic.Pointer[gorm.DB]

// endpoint is one Postgres server the API talks to.
type endpoint struct {
	host, port, user, password, name, sslMode string
}

func primaryEndpoint(cfg *config.Config) endpoint {
	return endpoint{cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode}
}

func replicaEndpoint(cfg *config.Config) endpoint {
	return endpoint{cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode}
}

// dsn renders a libpq keyword/value string. Values are quoted so a password
// containing spaces or quotes survives.
func (e endpoint) dsn() string {
	sslMode := e.sslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	pairs := [][2]string{
		{"host", e.host},
		{"port", e.port},
		{"user", e.user},
		{"password", e.password},
		{"dbname", e.name},
		{"sslmode", sslMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, kv[0]+"="+quoteValue(kv[1]))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// ConnectOptions tune Connect for commands that manage schema themselves.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the primary, applies schema per DB_SCHEMA_MODE and attaches
// the read replica when one is configured.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions is Connect with schema handling left to the caller.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	log := middleware.Logger.With(slog.String("component", "database"))
	gormCfg := &gorm.Config{Logger: NewGormLogger(log, logger.Warn)}

	db, err := open(primaryEndpoint(cfg), cfg, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connected", slog.String("host", cfg.DBHost), slog.String("name", cfg.DBName))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), db, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBReadHost != "" {
		ro, err := open(replicaEndpoint(cfg), cfg, gormCfg)
		if err != nil {
			log.Warn("read replica unavailable, reads use primary", slog.String("error", err.Error()))
		} else {
			SetReadDB(ro)
			log.Info("read replica attached", slog.String("host", cfg.DBReadHost))
		}
	}
	return db, nil
}

func open(e endpoint, cfg *config.Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(e.dsn()), gormCfg)
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// configurePool applies the pool limits that are set; zero keeps the
// database/sql default.
func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	if n := cfg.DBMaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.DBMaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if m := cfg.DBConnMaxLifetimeMinutes; m > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(m) * time.Minute)
	}
	return nil
}

// SetReadDB installs the replica list and search queries go to.
func SetReadDB(db *gorm.DB) { replica.Store(db) }

// GetReadDB returns the replica, nil when reads use the primary.
func GetReadDB() *gorm.DB { return replica.Load() }
