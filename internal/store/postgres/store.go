// Package postgres provides the PostgreSQL-backed member store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
	"github.com/tartampluch/go-birthday-bot/internal/store/postgres/migrations"
)

// Store persists members in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn and applies embedded migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	cfg.MaxConns = config.PgMaxConns
	cfg.MaxConnLifetime = config.PgMaxConnLifetime
	cfg.ConnConfig.ConnectTimeout = config.PgConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	list, err := store.LoadMigrations(migrations.FS)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+config.MigrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range list {
		var found int
		err := pool.QueryRow(ctx, `SELECT 1 FROM `+config.MigrationTable+` WHERE name = $1`, m.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("exec migration %s: %w", m.Name, err)
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO `+config.MigrationTable+` (name, applied_at) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				m.Name, time.Now().UTC(),
			)
			return err
		})
		if err != nil {
			return err
		}
		slog.Debug(config.MsgMigrationDone,
			config.LogKeyComponent, config.CompStore,
			config.LogKeyDriver, config.DriverPostgres,
			config.LogKeyMigration, m.Name,
		)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const selectColumns = `user_id, username, display_name, birthday, photo_id, photo_fetched_at, created_at, updated_at`

func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		rec       store.Record
		birthday  pgtype.Date
		fetchedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&rec.UserID, &rec.Username, &rec.DisplayName, &birthday, &rec.PhotoID,
		&fetchedAt, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return store.Record{}, err
	}
	if birthday.Valid {
		d := time.Date(birthday.Time.Year(), birthday.Time.Month(), birthday.Time.Day(), 0, 0, 0, 0, time.UTC)
		rec.Birthday = &d
	}
	if fetchedAt.Valid {
		t := fetchedAt.Time.UTC()
		rec.PhotoFetchedAt = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// Create inserts a new member.
func (s *Store) Create(ctx context.Context, userID int64, username string) (store.Record, error) {
	now := s.now().UTC()
	rec := store.Update{Username: store.Set(username)}.Apply(store.Record{UserID: userID})

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO members (user_id, username, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, rec.Username, now,
	)
	if err != nil {
		return store.Record{}, fmt.Errorf("%s: create member: %w", config.ErrStoreQuery, err)
	}
	if tag.RowsAffected() == 0 {
		return store.Record{}, store.ErrAlreadyExists
	}
	return s.Get(ctx, userID)
}

// Get returns one member.
func (s *Store) Get(ctx context.Context, userID int64) (store.Record, error) {
	return get(ctx, s.pool, userID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func get(ctx context.Context, q querier, userID int64) (store.Record, error) {
	rec, err := scanRecord(q.QueryRow(ctx, `SELECT `+selectColumns+` FROM members WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("%s: get member: %w", config.ErrStoreQuery, err)
	}
	return rec, nil
}

// All returns every member in registration order.
func (s *Store) All(ctx context.Context) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM members ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: list members: %w", config.ErrStoreQuery, err)
	}
	defer rows.Close()

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

// Upsert applies u inside one transaction, locking the member row.
func (s *Store) Upsert(ctx context.Context, userID int64, u store.Update) (store.Record, error) {
	var next store.Record
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := s.now().UTC()
		cur, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+selectColumns+` FROM members WHERE user_id = $1 FOR UPDATE`, userID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			cur = store.Record{UserID: userID, CreatedAt: now}
		case err != nil:
			return fmt.Errorf("%s: get member: %w", config.ErrStoreQuery, err)
		}

		next = u.Apply(cur)
		next.UpdatedAt = now

		_, err = tx.Exec(ctx,
			`INSERT INTO members (user_id, username, display_name, birthday, photo_id, photo_fetched_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id) DO UPDATE SET
			   username = EXCLUDED.username,
			   display_name = EXCLUDED.display_name,
			   birthday = EXCLUDED.birthday,
			   photo_id = EXCLUDED.photo_id,
			   updated_at = EXCLUDED.updated_at`,
			next.UserID, next.Username, next.DisplayName, toDate(next.Birthday), next.PhotoID,
			toTimestamptz(next.PhotoFetchedAt), next.CreatedAt, next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("%s: upsert member: %w", config.ErrStoreQuery, err)
		}
		return nil
	})
	if err != nil {
		return store.Record{}, err
	}
	return next, nil
}

// MarkPhotoFetched stores the download time of the member's photo.
func (s *Store) MarkPhotoFetched(ctx context.Context, userID int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE members SET photo_fetched_at = $1 WHERE user_id = $2`,
		at.UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: mark photo fetched: %w", config.ErrStoreQuery, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
