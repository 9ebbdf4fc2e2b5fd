package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/jmoiron/sqlx"
)

// activityRow is an activity joined with its trip_activities placement.
type activityRow struct {
	ID          int64           `db:"id"`
	TripID      int64           `db:"trip_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Address     string          `db:"address"`
	Price       sql.NullFloat64 `db:"price"`
	Tags        string          `db:"tags"`
	Rating      float64         `db:"rating"`
	ImageURL    string          `db:"image_url"`
	CreatedAt   time.Time       `db:"created_at"`
	Status      string          `db:"status"`
	Day         sql.NullInt64   `db:"day"`
}

func (r activityRow) toModel() (model.Activity, error) {
	a := model.Activity{
		ID:          r.ID,
		TripID:      r.TripID,
		Title:       r.Title,
		Description: r.Description,
		Address:     r.Address,
		Rating:      r.Rating,
		ImageURL:    r.ImageURL,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		Tags:        []string{},
	}
	if r.Price.Valid {
		p := r.Price.Float64
		a.Price = &p
	}
	if r.Day.Valid && r.Status == model.StatusTimeline {
		d := int(r.Day.Int64)
		a.Day = &d
	}
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &a.Tags); err != nil {
			return model.Activity{}, fmt.Errorf("decode tags of activity %d: %w", r.ID, err)
		}
	}
	return a, nil
}

const activitySelect = `
	SELECT a.id, a.trip_id, a.title, a.description, a.address, a.price, a.tags,
		a.rating, a.image_url, a.created_at,
		COALESCE(ta.status, 'backlog') AS status, ta.day AS day
	FROM activities a
	LEFT JOIN trip_activities ta ON ta.activity_id = a.id`

func scanActivities(rows []activityRow) ([]model.Activity, error) {
	out := make([]model.Activity, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func encodeTags(tags []string) (string, error) {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	b, err := json.Marshal(cleaned)
	return string(b), err
}

// GetActivities returns every activity of a trip with its placement.
func (db *DB) GetActivities(ctx context.Context, tripID int64) ([]model.Activity, error) {
	if _, err := db.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	var rows []activityRow
	if err := db.conn.SelectContext(ctx, &rows, db.q(activitySelect+" WHERE a.trip_id = ? ORDER BY a.id"), tripID); err != nil {
		return nil, err
	}
	return scanActivities(rows)
}

// GetActivity returns a single activity.
func (db *DB) GetActivity(ctx context.Context, activityID int64) (model.Activity, error) {
	var r activityRow
	err := db.conn.GetContext(ctx, &r, db.q(activitySelect+" WHERE a.id = ?"), activityID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Activity{}, fmt.Errorf("activity %d: %w", activityID, model.ErrNotFound)
	}
	if err != nil {
		return model.Activity{}, err
	}
	return r.toModel()
}

// SearchActivities matches query against title, description and address,
// case-insensitively.
func (db *DB) SearchActivities(ctx context.Context, tripID int64, query string) ([]model.Activity, error) {
	if _, err := db.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var rows []activityRow
	err := db.conn.SelectContext(ctx, &rows, db.q(activitySelect+`
		WHERE a.trip_id = ?
		AND (LOWER(a.title) LIKE ? OR LOWER(a.description) LIKE ? OR LOWER(a.address) LIKE ?)
		ORDER BY a.id`), tripID, like, like, like)
	if err != nil {
		return nil, err
	}
	return scanActivities(rows)
}

// CreateActivity inserts an activity and its placement (backlog unless
// the input names a day).
func (db *DB) CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error) {
	if err := in.Validate(); err != nil {
		return model.Activity{}, err
	}
	var id int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		if err := db.checkDay(ctx, tx, tripID, in.Placement()); err != nil {
			return err
		}
		var err error
		id, err = db.insertActivity(ctx, tx, tripID, in)
		return err
	})
	if err != nil {
		return model.Activity{}, err
	}
	return db.GetActivity(ctx, id)
}

// insertActivity writes a validated activity and its placement.
func (db *DB) insertActivity(ctx context.Context, tx *sqlx.Tx, tripID int64, in model.ActivityInput) (int64, error) {
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.GetContext(ctx, &id, db.q(`
		INSERT INTO activities (trip_id, title, description, address, price, tags, rating, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		tripID, in.Title, in.Description, in.Address, in.Price, tags, in.Rating, in.ImageURL, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return id, db.place(ctx, tx, tripID, id, in.Placement())
}

// UpdateActivity replaces the descriptive fields of an activity. Its
// placement is left alone; see MoveActivity.
func (db *DB) UpdateActivity(ctx context.Context, activityID int64, in model.ActivityInput) (model.Activity, error) {
	in.Status, in.Day = "", nil
	if err := in.Validate(); err != nil {
		return model.Activity{}, err
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return model.Activity{}, err
	}
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE activities
		SET title = ?, description = ?, address = ?, price = ?, tags = ?, rating = ?, image_url = ?
		WHERE id = ?`),
		in.Title, in.Description, in.Address, in.Price, tags, in.Rating, in.ImageURL, activityID)
	if err != nil {
		return model.Activity{}, err
	}
	if err := expectRow(res, fmt.Sprintf("activity %d", activityID)); err != nil {
		return model.Activity{}, err
	}
	return db.GetActivity(ctx, activityID)
}

// MoveActivity changes only the placement of an activity.
func (db *DB) MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) (model.Activity, error) {
	if err := p.Validate(); err != nil {
		return model.Activity{}, err
	}
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		if err := db.checkActivity(ctx, tx, tripID, activityID); err != nil {
			return err
		}
		if err := db.checkDay(ctx, tx, tripID, p); err != nil {
			return err
		}
		return db.place(ctx, tx, tripID, activityID, p)
	})
	if err != nil {
		return model.Activity{}, err
	}
	return db.GetActivity(ctx, activityID)
}

// DeleteActivity removes an activity from a trip.
func (db *DB) DeleteActivity(ctx context.Context, tripID, activityID int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.checkActivity(ctx, tx, tripID, activityID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, db.q("DELETE FROM trip_activities WHERE activity_id = ?"), activityID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, db.q("DELETE FROM activities WHERE id = ?"), activityID)
		return err
	})
}

func (db *DB) checkActivity(ctx context.Context, tx *sqlx.Tx, tripID, activityID int64) error {
	var n int
	err := tx.GetContext(ctx, &n, db.q("SELECT COUNT(*) FROM activities WHERE id = ? AND trip_id = ?"), activityID, tripID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("activity %d in trip %d: %w", activityID, tripID, model.ErrNotFound)
	}
	return nil
}

// checkDay verifies a timeline placement names an existing day.
func (db *DB) checkDay(ctx context.Context, tx *sqlx.Tx, tripID int64, p model.Placement) error {
	if p.Status != model.StatusTimeline {
		return nil
	}
	total, err := db.countDays(ctx, tx, tripID)
	if err != nil {
		return err
	}
	if *p.Day > total {
		return fmt.Errorf("day %d of trip %d: %w", *p.Day, tripID, model.ErrNotFound)
	}
	return nil
}

func (db *DB) place(ctx context.Context, tx *sqlx.Tx, tripID, activityID int64, p model.Placement) error {
	_, err := tx.ExecContext(ctx, db.q(`
		INSERT INTO trip_activities (activity_id, trip_id, status, day) VALUES (?, ?, ?, ?)
		ON CONFLICT (activity_id) DO UPDATE SET status = excluded.status, day = excluded.day`),
		activityID, tripID, p.Status, p.Day)
	return err
}
