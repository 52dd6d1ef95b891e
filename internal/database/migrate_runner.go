package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"scholarhub/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one row of migration_logs.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// MigrationStore records which migrations ran. Apply and Revert execute the
// script and update the log in one transaction.
type MigrationStore interface {
	Applied(ctx context.Context) ([]MigrationLog, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type gormMigrationStore struct {
	db *gorm.DB
}

func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &gormMigrationStore{db: db}
}

func migrationLogger() *slog.Logger {
	return middleware.Logger.With(slog.String("component", "migrations"))
}

// Applied lists recorded migrations by version. A missing log table means
// nothing has run yet.
func (s *gormMigrationStore) Applied(ctx context.Context) ([]MigrationLog, error) {
	var rows []MigrationLog
	err := s.db.WithContext(ctx).Order("version ASC").Find(&rows).Error
	switch {
	case err == nil:
		return rows, nil
	case errors.Is(err, gorm.ErrRecordNotFound), isMissingTableError(err):
		return []MigrationLog{}, nil
	default:
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
}

func (s *gormMigrationStore) Apply(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m.String(), err)
		}
		entry := MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record %s: %w", m.String(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	migrationLogger().Info("migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

func (s *gormMigrationStore) Revert(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", m.String(), err)
		}
		res := tx.Where("version = ?", m.Version).Delete(&MigrationLog{})
		if res.Error != nil {
			return fmt.Errorf("unrecord %s: %w", m.String(), res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %s has not been applied", m.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	migrationLogger().Info("migration reverted", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

func isMissingTableError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

const migrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64),
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE migration_logs ADD COLUMN IF NOT EXISTS checksum VARCHAR(64);`

// RunMigrations applies every registered migration that is not yet in
// migration_logs. It refuses to run when the log names versions this build
// does not ship or when an applied script has been edited since.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(migrationLogTableSQL).Error; err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return runPending(ctx, NewMigrationStore(db), migrations)
}

func runPending(ctx context.Context, store MigrationStore, registered []Migration) error {
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(versionsOf(applied), registered); err != nil {
		return err
	}
	if err := verifyChecksums(applied, registered); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		done[row.Version] = true
	}

	log := migrationLogger()
	pending := 0
	for _, m := range registered {
		if done[m.Version] {
			continue
		}
		pending++
		log.Info("applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
	}
	if pending == 0 {
		log.Debug("schema up to date", slog.Int("applied", len(applied)))
	}
	return nil
}

func versionsOf(rows []MigrationLog) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.Version
	}
	return out
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]bool, len(registered))
	for _, m := range registered {
		known[m.Version] = true
	}

	var unknown []int
	for _, version := range applied {
		if !known[version] {
			unknown = append(unknown, version)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	labels := make([]string, len(unknown))
	for i, version := range unknown {
		labels[i] = fmt.Sprintf("%06d", version)
	}
	return fmt.Errorf("migration_logs lists versions this build does not ship: %s (inspect with `migrate status`)",
		strings.Join(labels, ", "))
}

// verifyChecksums compares recorded checksums with the shipped scripts.
// Rows written before checksums were tracked carry none and are accepted.
func verifyChecksums(applied []MigrationLog, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}
	var drifted []string
	for _, row := range applied {
		m, ok := byVersion[row.Version]
		if !ok || row.Checksum == "" || m.Checksum == "" {
			continue
		}
		if row.Checksum != m.Checksum {
			drifted = append(drifted, m.String())
		}
	}
	if len(drifted) > 0 {
		return fmt.Errorf("applied migrations were edited after they ran: %s", strings.Join(drifted, ", "))
	}
	return nil
}

// RollbackMigration reverts one applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	migrationLogger().Info("rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return NewMigrationStore(db).Revert(ctx, *m)
}
