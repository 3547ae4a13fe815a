package store_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"up and down", "-- +migrate Up\nCREATE TABLE a;\n-- +migrate Down\nDROP TABLE a;\n", "\nCREATE TABLE a;\n"},
		{"up only", "-- +migrate Up\nCREATE TABLE b;\n", "\nCREATE TABLE b;\n"},
		{"no markers", "CREATE TABLE c;", "CREATE TABLE c;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.ExtractUpMigration(tt.content))
		})
	}
}

func TestLoadMigrations_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte("-- +migrate Up\nB;\n-- +migrate Down\n")},
		"001_a.sql":  {Data: []byte("-- +migrate Up\nA;\n")},
		"003_c.sql":  {Data: []byte("-- +migrate Up\n   \n-- +migrate Down\nX;")},
		"README.txt": {Data: []byte("ignored")},
	}

	list, err := store.LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "001_a.sql", list[0].Name)
	assert.Equal(t, "002_b.sql", list[1].Name)
	assert.Contains(t, list[1].Up, "B;")
}

func TestBackendFor(t *testing.T) {
	assert.Equal(t, store.BackendPostgres, store.BackendFor("postgres://u:p@db/bot"))
	assert.Equal(t, store.BackendPostgres, store.BackendFor(" POSTGRESQL://db/bot"))
	assert.Equal(t, store.BackendSQLite, store.BackendFor("data/birthdays.db"))
	assert.Equal(t, store.BackendSQLite, store.BackendFor("/var/lib/bot.sqlite"))
}
