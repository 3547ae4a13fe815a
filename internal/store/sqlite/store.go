// Package sqlite provides the SQLite-backed member store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
	"github.com/tartampluch/go-birthday-bot/internal/store/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists members in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s: storage path is required", config.ErrStoreOpen)
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCreateDir, err)
		}
	}

	sqlDB, err := sql.Open(config.DriverSQLite, cleanPath+config.SQLiteDSNSuffix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	// A single writer avoids SQLITE_BUSY between the bot and the scheduler.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	list, err := store.LoadMigrations(migrations.FS)
	if err != nil {
		return err
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + config.MigrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range list {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+config.MigrationTable+` WHERE name = ?`, m.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO `+config.MigrationTable+` (name, applied_at) VALUES (?, ?)`,
			m.Name, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
		slog.Debug(config.MsgMigrationDone,
			config.LogKeyComponent, config.CompStore,
			config.LogKeyDriver, config.DriverSQLite,
			config.LogKeyMigration, m.Name,
		)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const selectColumns = `user_id, username, display_name, birthday, photo_id, photo_fetched_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (store.Record, error) {
	var (
		rec                            store.Record
		username, displayName, photoID sql.NullString
		birthday                       sql.NullString
		fetchedAt                      sql.NullInt64
		createdAt, updatedAt           int64
	)
	if err := row.Scan(&rec.UserID, &username, &displayName, &birthday, &photoID, &fetchedAt, &createdAt, &updatedAt); err != nil {
		return store.Record{}, err
	}
	rec.Username = nullString(username)
	rec.DisplayName = nullString(displayName)
	rec.PhotoID = nullString(photoID)
	if birthday.Valid {
		t, err := time.Parse(config.DateFormatFullDash, birthday.String)
		if err != nil {
			return store.Record{}, fmt.Errorf("%s: %w", config.ErrDateParse, err)
		}
		rec.Birthday = &t
	}
	if fetchedAt.Valid {
		t := fromMillis(fetchedAt.Int64)
		rec.PhotoFetchedAt = &t
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(config.DateFormatFullDash), Valid: true}
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

// Create inserts a new member.
func (s *Store) Create(ctx context.Context, userID int64, username string) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	now := s.now().UTC()
	rec := store.Update{Username: store.Set(username)}.Apply(store.Record{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO members (user_id, username, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		rec.UserID, toNullString(rec.Username), toMillis(now), toMillis(now),
	)
	if err != nil {
		return store.Record{}, fmt.Errorf("%s: create member: %w", config.ErrStoreQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.Record{}, store.ErrAlreadyExists
	}
	return s.Get(ctx, userID)
}

// Get returns one member.
func (s *Store) Get(ctx context.Context, userID int64) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	return get(ctx, s.sqlDB, userID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, userID int64) (store.Record, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM members WHERE user_id = ?`, userID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("%s: get member: %w", config.ErrStoreQuery, err)
	}
	return rec, nil
}

// All returns every member in registration order.
func (s *Store) All(ctx context.Context) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+selectColumns+` FROM members ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("%s: list members: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var records []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan member: %w", config.ErrStoreQuery, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: list members: %w", config.ErrStoreQuery, err)
	}
	return records, nil
}

// Upsert applies u inside one transaction.
func (s *Store) Upsert(ctx context.Context, userID int64, u store.Update) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return store.Record{}, fmt.Errorf("%s: begin upsert: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	cur, err := get(ctx, tx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cur = store.Record{UserID: userID, CreatedAt: now}
	case err != nil:
		return store.Record{}, err
	}

	next := u.Apply(cur)
	next.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (user_id, username, display_name, birthday, photo_id, photo_fetched_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   username = excluded.username,
		   display_name = excluded.display_name,
		   birthday = excluded.birthday,
		   photo_id = excluded.photo_id,
		   updated_at = excluded.updated_at`,
		next.UserID,
		toNullString(next.Username),
		toNullString(next.DisplayName),
		toNullDate(next.Birthday),
		toNullString(next.PhotoID),
		toNullMillis(next.PhotoFetchedAt),
		toMillis(next.CreatedAt),
		toMillis(next.UpdatedAt),
	)
	if err != nil {
		return store.Record{}, fmt.Errorf("%s: upsert member: %w", config.ErrStoreQuery, err)
	}
	if err := tx.Commit(); err != nil {
		return store.Record{}, fmt.Errorf("%s: commit upsert: %w", config.ErrStoreQuery, err)
	}
	return next, nil
}

// MarkPhotoFetched stores the download time of the member's photo.
func (s *Store) MarkPhotoFetched(ctx context.Context, userID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE members SET photo_fetched_at = ? WHERE user_id = ?`,
		toMillis(at), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: mark photo fetched: %w", config.ErrStoreQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
