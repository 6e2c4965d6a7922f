package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.SourceDir, "directory new migrations are written to (create only)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work offline
	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateEmbedded(); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, *cmd)
	case "version":
		if *version == "" {
			exitf("missing -version for version command")
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, *version)
	default:
		exitf("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
