// Package database provides SQLite storage for the trip planner.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB is the sqlx-backed Store shared by the SQLite and PostgreSQL backends.
// All queries are written with ? placeholders and rebound per driver.
type DB struct {
	conn    *sqlx.DB
	dialect dialect
	maxDays int
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

type dialect struct {
	name            string
	schema          string
	highConcurrency bool
	forUpdate       string // row lock suffix for SELECT, empty if the engine serializes writers
}

var sqliteDialect = dialect{
	name: "SQLite",
	schema: `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trip_id INTEGER NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		address TEXT NOT NULL,
		price REAL,
		tags TEXT NOT NULL DEFAULT '[]',
		rating REAL NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trip_days (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trip_id INTEGER NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		day_number INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS trip_activities (
		activity_id INTEGER PRIMARY KEY REFERENCES activities(id) ON DELETE CASCADE,
		trip_id INTEGER NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'backlog' CHECK (status IN ('backlog', 'timeline')),
		day INTEGER
	);
	-- day_number is renumbered in place, so it is indexed but not unique.
	CREATE INDEX IF NOT EXISTS idx_trip_days_trip ON trip_days(trip_id, day_number);
	CREATE INDEX IF NOT EXISTS idx_activities_trip ON activities(trip_id);
	CREATE INDEX IF NOT EXISTS idx_trip_activities_day ON trip_activities(trip_id, day);
	`,
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(path string, maxDays int) (*DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	conn, err := sqlx.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	conn.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	return open(conn, sqliteDialect, maxDays)
}

func open(conn *sqlx.DB, d dialect, maxDays int) (*DB, error) {
	if maxDays <= 0 {
		maxDays = model.DefaultMaxDays
	}
	db := &DB{conn: conn, dialect: d, maxDays: maxDays}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return db.dialect.name
}

// SupportsHighConcurrency reports whether parallel writers are safe.
func (db *DB) SupportsHighConcurrency() bool {
	return db.dialect.highConcurrency
}

// MaxDays returns the per-trip day ceiling.
func (db *DB) MaxDays() int {
	return db.maxDays
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(db.dialect.schema)
	return err
}

func (db *DB) q(query string) string {
	return db.conn.Rebind(query)
}

// withTx runs fn in a transaction, rolling back on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockTrip confirms the trip exists and, where the engine supports it,
// holds its row until the transaction ends.
func (db *DB) lockTrip(ctx context.Context, tx *sqlx.Tx, tripID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, db.q("SELECT id FROM trips WHERE id = ?"+db.dialect.forUpdate), tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %d: %w", tripID, model.ErrNotFound)
	}
	return err
}

// --- User Methods ---

// CreateUser inserts a user. Emails are unique.
func (db *DB) CreateUser(ctx context.Context, in model.UserInput) (model.User, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, err
	}
	var u model.User
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, db.q("SELECT COUNT(*) FROM users WHERE email = ?"), in.Email); err != nil {
			return err
		}
		if n > 0 {
			return &model.ValidationError{Message: "email already registered"}
		}
		now := time.Now().UTC()
		var id int64
		err := tx.GetContext(ctx, &id, db.q(`
			INSERT INTO users (username, email, password_hash, created_at)
			VALUES (?, ?, ?, ?) RETURNING id`),
			in.Username, in.Email, in.PasswordHash, now)
		if err != nil {
			return err
		}
		u = model.User{ID: id, Username: in.Username, Email: in.Email, PasswordHash: in.PasswordHash, CreatedAt: now}
		return nil
	})
	return u, err
}

// GetUsers returns all users ordered by id.
func (db *DB) GetUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := db.conn.SelectContext(ctx, &users, "SELECT id, username, email, password_hash, created_at FROM users ORDER BY id")
	return users, err
}

// --- Trip Methods ---

type tripRow struct {
	ID          int64         `db:"id"`
	UserID      sql.NullInt64 `db:"user_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	StartDate   string        `db:"start_date"`
	EndDate     string        `db:"end_date"`
	CreatedAt   time.Time     `db:"created_at"`
}

func (r tripRow) toModel() model.Trip {
	t := model.Trip{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		CreatedAt:   r.CreatedAt,
	}
	if r.UserID.Valid {
		uid := r.UserID.Int64
		t.UserID = &uid
	}
	return t
}

const tripColumns = "id, user_id, title, description, start_date, end_date, created_at"

// CreateTrip inserts a trip. A trip starts with no days.
func (db *DB) CreateTrip(ctx context.Context, in model.TripInput) (model.Trip, error) {
	if err := in.Validate(); err != nil {
		return model.Trip{}, err
	}
	var id int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.checkUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		return tx.GetContext(ctx, &id, db.q(`
			INSERT INTO trips (user_id, title, description, start_date, end_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			in.UserID, in.Title, in.Description, in.StartDate, in.EndDate, time.Now().UTC())
	})
	if err != nil {
		return model.Trip{}, err
	}
	return db.GetTrip(ctx, id)
}

func (db *DB) checkUser(ctx context.Context, tx *sqlx.Tx, userID *int64) error {
	if userID == nil {
		return nil
	}
	var n int
	if err := tx.GetContext(ctx, &n, db.q("SELECT COUNT(*) FROM users WHERE id = ?"), *userID); err != nil {
		return err
	}
	if n == 0 {
		return &model.ValidationError{Message: fmt.Sprintf("unknown user %d", *userID)}
	}
	return nil
}

// GetTrip returns a single trip.
func (db *DB) GetTrip(ctx context.Context, tripID int64) (model.Trip, error) {
	var r tripRow
	err := db.conn.GetContext(ctx, &r, db.q("SELECT "+tripColumns+" FROM trips WHERE id = ?"), tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trip{}, fmt.Errorf("trip %d: %w", tripID, model.ErrNotFound)
	}
	if err != nil {
		return model.Trip{}, err
	}
	return r.toModel(), nil
}

// GetTrips returns all trips, optionally filtered by owner.
func (db *DB) GetTrips(ctx context.Context, userID *int64) ([]model.Trip, error) {
	var rows []tripRow
	var err error
	if userID == nil {
		err = db.conn.SelectContext(ctx, &rows, "SELECT "+tripColumns+" FROM trips ORDER BY id")
	} else {
		err = db.conn.SelectContext(ctx, &rows, db.q("SELECT "+tripColumns+" FROM trips WHERE user_id = ? ORDER BY id"), *userID)
	}
	if err != nil {
		return nil, err
	}
	trips := make([]model.Trip, 0, len(rows))
	for _, r := range rows {
		trips = append(trips, r.toModel())
	}
	return trips, nil
}

// UpdateTrip replaces the editable fields of a trip.
func (db *DB) UpdateTrip(ctx context.Context, tripID int64, in model.TripInput) (model.Trip, error) {
	if err := in.Validate(); err != nil {
		return model.Trip{}, err
	}
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.checkUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, db.q(`
			UPDATE trips SET user_id = ?, title = ?, description = ?, start_date = ?, end_date = ?
			WHERE id = ?`),
			in.UserID, in.Title, in.Description, in.StartDate, in.EndDate, tripID)
		if err != nil {
			return err
		}
		return expectRow(res, fmt.Sprintf("trip %d", tripID))
	})
	if err != nil {
		return model.Trip{}, err
	}
	return db.GetTrip(ctx, tripID)
}

// DeleteTrip removes a trip with its days and activities.
func (db *DB) DeleteTrip(ctx context.Context, tripID int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		for _, stmt := range []string{
			"DELETE FROM trip_activities WHERE trip_id = ?",
			"DELETE FROM activities WHERE trip_id = ?",
			"DELETE FROM trip_days WHERE trip_id = ?",
			"DELETE FROM trips WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, db.q(stmt), tripID); err != nil {
				return err
			}
		}
		return nil
	})
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}
