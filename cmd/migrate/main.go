// Command migrate runs schema operations for the ScholarHub database.
//
//	migrate up            apply pending SQL migrations
//	migrate auto          run gorm AutoMigrate regardless of DB_SCHEMA_MODE
//	migrate status        print applied and pending migrations
//	migrate check         exit non-zero when migrations are pending or tables are missing
//	migrate down VERSION  revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"scholarhub/internal/config"
	"scholarhub/internal/database"
	"scholarhub/internal/middleware"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <up|auto|status|check|down VERSION>")

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {0, up},
	"auto":   {0, auto},
	"status": {0, status},
	"check":  {0, check},
	"down":   {1, down},
}

var log = middleware.Logger.With(slog.String("component", "migrate"))

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok || len(args)-1 != cmd.args {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return err
	}
	return cmd.run(ctx, db, cfg, args[1:])
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	return database.RunMigrations(ctx, db)
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	log.Info("automigrate finished", slog.Int("models", len(database.PersistentModels())))
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	log.Info("schema status",
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Any("applied", st.AppliedVersions),
		slog.Int("pending", len(st.PendingMigrations)),
		slog.Any("missing_tables", st.MissingTables))
	for i := range st.PendingMigrations {
		fmt.Println("pending:", st.PendingMigrations[i].String())
	}
	return nil
}

func check(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	var problems []error
	if n := len(st.PendingMigrations); n > 0 {
		problems = append(problems, fmt.Errorf("%d migration(s) pending", n))
	}
	if len(st.MissingTables) > 0 {
		problems = append(problems, fmt.Errorf("missing tables: %s", strings.Join(st.MissingTables, ", ")))
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}
	log.Info("schema matches the models")
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	return database.RollbackMigration(ctx, db, version)
}
