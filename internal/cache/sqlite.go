package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attrack/internal/attendance"
	"attrack/internal/cache/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCache implements the attendance.Cache interface using SQLite.
type SQLiteCache struct {
	db   *sql.DB
	path string
	hub  *watchHub
}

var _ attendance.Cache = (*SQLiteCache)(nil)

// NewSQLiteCache opens (creating if necessary) the cache at path and
// brings its schema up to date. path can be ":memory:" for tests.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache: %w", err)
	}

	return &SQLiteCache{db: db, path: path, hub: newWatchHub()}, nil
}

// NewSQLiteCacheFromDB wraps an existing connection whose schema is
// already applied. The caller keeps ownership of the connection's
// configuration; Close still closes it.
func NewSQLiteCacheFromDB(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db, hub: newWatchHub()}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// Exported for tests that need a properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

const recordColumns = "id, day, status, created_at, action_at, latitude, longitude, reason"

func (c *SQLiteCache) Get(ctx context.Context, id string) (*attendance.Record, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM attendance WHERE id = ?", id)
	return scanRecord(row)
}

func (c *SQLiteCache) GetForDay(ctx context.Context, day string) (*attendance.Record, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM attendance WHERE day = ?", day)
	return scanRecord(row)
}

func (c *SQLiteCache) ListHistory(ctx context.Context, r attendance.HistoryRange) ([]*attendance.Record, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM attendance WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC",
		r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("listing cached history: %w", err)
	}
	defer rows.Close()

	var recs []*attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing cached history: %w", err)
	}
	return recs, nil
}

func (c *SQLiteCache) Put(ctx context.Context, rec *attendance.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// One record per day: evict any record occupying the day under a
	// different id before the upsert.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attendance WHERE day = ? AND id != ?", rec.Day(), rec.ID); err != nil {
		return fmt.Errorf("evicting day record: %w", err)
	}

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	c.hub.publish(rec)
	return nil
}

func (c *SQLiteCache) Replace(ctx context.Context, oldID string, rec *attendance.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance WHERE id = ?", oldID); err != nil {
		return fmt.Errorf("deleting superseded record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attendance WHERE day = ? AND id != ?", rec.Day(), rec.ID); err != nil {
		return fmt.Errorf("evicting day record: %w", err)
	}

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	c.hub.publish(rec)
	return nil
}

func (c *SQLiteCache) ReplaceHistory(ctx context.Context, r attendance.HistoryRange, recs []*attendance.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attendance WHERE created_at >= ? AND created_at < ?", r.Start, r.End); err != nil {
		return fmt.Errorf("clearing cached range: %w", err)
	}

	for _, rec := range recs {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for _, rec := range recs {
		c.hub.publish(rec)
	}
	return nil
}

func (c *SQLiteCache) Owner(ctx context.Context) (string, error) {
	var owner string
	err := c.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = 'owner'").Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading cache owner: %w", err)
	}
	return owner, nil
}

func (c *SQLiteCache) SetOwner(ctx context.Context, user string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('owner', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		user)
	if err != nil {
		return fmt.Errorf("recording cache owner: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance"); err != nil {
		return fmt.Errorf("clearing attendance records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta WHERE key = 'owner'"); err != nil {
		return fmt.Errorf("clearing cache owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Watch(ctx context.Context) <-chan *attendance.Record {
	return c.hub.subscribe(ctx)
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// insertRecord upserts one record by id inside the caller's transaction.
func insertRecord(ctx context.Context, tx *sql.Tx, rec *attendance.Record) error {
	var lat, lng sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Location.Longitude, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO attendance (id, day, status, created_at, action_at, latitude, longitude, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day = excluded.day,
			status = excluded.status,
			created_at = excluded.created_at,
			action_at = excluded.action_at,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			reason = excluded.reason`,
		rec.ID, rec.Day(), string(rec.Status), rec.CreatedAt, rec.Timestamp, lat, lng, rec.Reason)
	if err != nil {
		return fmt.Errorf("writing record %s: %w", rec.ID, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*attendance.Record, error) {
	var (
		rec      attendance.Record
		day      string
		status   string
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &day, &status, &rec.CreatedAt, &rec.Timestamp, &lat, &lng, &rec.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.Status, err = attendance.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	if lat.Valid != lng.Valid {
		return nil, &attendance.InvalidRecordError{ID: rec.ID, Reason: "cached record carries only one coordinate"}
	}
	if lat.Valid {
		rec.Location = &attendance.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}

	return &rec, nil
}
