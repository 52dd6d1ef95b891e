package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scholarhub/internal/config"
	"scholarhub/internal/middleware"

	"gorm.io/gorm"
)

// Values accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus is what `migrate status` prints.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// MissingTables lists portal tables absent from the connected database.
	MissingTables []string
}

func schemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

func protectedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// schemaPolicy decides which schema steps run. Hybrid runs SQL everywhere
// and AutoMigrate only outside protected environments; auto in a protected
// environment needs an explicit opt-in.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	protected := protectedEnv(cfg.Env)
	switch mode := schemaMode(cfg); mode {
	case SchemaModeHybrid:
		return true, !protected, nil
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if protected && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("DB_SCHEMA_MODE=auto in %q requires DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// activeApplicationIndexSQL enforces one open application per student and
// scholarship. Gorm tags cannot declare the WHERE clause.
const activeApplicationIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_one_active
	ON applications (user_id, scholarship_id)
	WHERE application_status IN ('pending', 'approved')`

// AutoMigrate syncs the persistent models and the partial index.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return err
	}
	return db.Exec(activeApplicationIndexSQL).Error
}

// ApplySchema runs the steps schemaPolicy selects and then checks that
// every portal table exists.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}
	log := middleware.Logger.With(slog.String("component", "schema"), slog.String("mode", schemaMode(cfg)))

	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if runAuto {
		if cfg.DBAutoMigrateAllowDestructive && protectedEnv(cfg.Env) {
			log.Warn("auto-migrating a protected environment; review schema diffs")
		}
		log.Info("running gorm automigrate", slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	if missing := missingTables(db); len(missing) > 0 {
		return fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingTables(db *gorm.DB) []string {
	var missing []string
	m := db.Migrator()
	for _, model := range PersistentModels() {
		if !m.HasTable(model) {
			stmt := &gorm.Statement{DB: db}
			name := fmt.Sprintf("%T", model)
			if err := stmt.Parse(model); err == nil {
				name = stmt.Schema.Table
			}
			missing = append(missing, name)
		}
	}
	return missing
}

// GetSchemaStatus reports the configured policy, migration progress and
// any missing portal tables without changing the database.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:               schemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
		MissingTables:      missingTables(db),
	}

	applied, err := NewMigrationStore(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = versionsOf(applied)

	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		done[row.Version] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
