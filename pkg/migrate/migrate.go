package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the path of the migrations inside the embedded filesystem.
const DefaultDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

func prepare(dialect string) error {
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if command == "" {
		return fmt.Errorf("command is required")
	}
	if err := prepare("postgres"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, DefaultDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it matches targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	if err := prepare("postgres"); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, DefaultDir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, DefaultDir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
