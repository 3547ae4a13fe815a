package store

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// Migration is one embedded schema change.
type Migration struct {
	Name string
	Up   string
}

// LoadMigrations reads the .sql files at the root of fsys in name order and
// extracts their "-- +migrate Up" sections.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := ExtractUpMigration(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		migrations = append(migrations, Migration{Name: name, Up: up})
	}
	return migrations, nil
}

// ExtractUpMigration returns the SQL in the "-- +migrate Up" section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, config.MigrateUpMarker)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, config.MigrateDnMarker)
	if downIdx == -1 || downIdx < upIdx {
		return content[upIdx+len(config.MigrateUpMarker):]
	}
	return content[upIdx+len(config.MigrateUpMarker) : downIdx]
}
