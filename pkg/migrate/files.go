package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SourceDir is where new migrations are written, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

var (
	sqlFileRe      = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql stamped with now.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), safe)
	fullpath := filepath.Join(dir, filename)
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}

	if err := os.WriteFile(fullpath, []byte(fmt.Sprintf(migrationTemplate, safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	sub, err := fs.Sub(embedded, DefaultDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	return ValidateFS(sub)
}

// ValidateFS checks filenames, version uniqueness and goose annotations.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(b), marker) {
				return fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
	}
	return nil
}
