package store

import (
	"strings"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// Backend names the storage driver chosen for a DATABASE_URL.
type Backend string

const (
	BackendSQLite   Backend = config.DriverSQLite
	BackendPostgres Backend = config.DriverPostgres
)

// BackendFor picks postgres for postgres:// and postgresql:// URLs and
// treats anything else as a SQLite file path.
func BackendFor(databaseURL string) Backend {
	u := strings.ToLower(strings.TrimSpace(databaseURL))
	if strings.HasPrefix(u, config.SchemePostgres) || strings.HasPrefix(u, config.SchemePostgres2) {
		return BackendPostgres
	}
	return BackendSQLite
}
