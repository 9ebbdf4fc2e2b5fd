package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/jmoiron/sqlx"
)

type dayRow struct {
	TripID int64  `db:"trip_id"`
	Number int    `db:"day_number"`
	Title  string `db:"title"`
}

func (db *DB) countDays(ctx context.Context, tx *sqlx.Tx, tripID int64) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, db.q("SELECT COUNT(*) FROM trip_days WHERE trip_id = ?"), tripID)
	return n, err
}

// GetDays returns the days of a trip in order.
func (db *DB) GetDays(ctx context.Context, tripID int64) ([]model.Day, error) {
	if _, err := db.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	var rows []dayRow
	err := db.conn.SelectContext(ctx, &rows, db.q("SELECT trip_id, day_number, title FROM trip_days WHERE trip_id = ? ORDER BY day_number"), tripID)
	if err != nil {
		return nil, err
	}
	days := make([]model.Day, 0, len(rows))
	for _, r := range rows {
		days = append(days, model.Day{TripID: r.TripID, Number: r.Number, Title: r.Title})
	}
	return days, nil
}

// AddDay appends day N+1. An empty title keeps the default "Day N+1".
func (db *DB) AddDay(ctx context.Context, tripID int64, title string) (model.Day, error) {
	day := model.Day{TripID: tripID, Title: strings.TrimSpace(title)}
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		total, err := db.countDays(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if total >= db.maxDays {
			return fmt.Errorf("trip %d already has %d days: %w", tripID, total, model.ErrCapacityExceeded)
		}
		day.Number = total + 1
		_, err = tx.ExecContext(ctx, db.q("INSERT INTO trip_days (trip_id, day_number, title) VALUES (?, ?, ?)"),
			tripID, day.Number, day.Title)
		return err
	})
	if err != nil {
		return model.Day{}, err
	}
	return day, nil
}

// UpdateDayTitle sets the title override of a day. An empty title resets it.
func (db *DB) UpdateDayTitle(ctx context.Context, tripID int64, day int, title string) (model.Day, error) {
	title = strings.TrimSpace(title)
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, db.q("UPDATE trip_days SET title = ? WHERE trip_id = ? AND day_number = ?"), title, tripID, day)
		if err != nil {
			return err
		}
		return expectRow(res, fmt.Sprintf("day %d of trip %d", day, tripID))
	})
	if err != nil {
		return model.Day{}, err
	}
	return model.Day{TripID: tripID, Number: day, Title: title}, nil
}

// RemoveDay deletes day k in one transaction: its activities return to the
// backlog, then every later day (and the activities on it) shifts down by
// one. Title overrides travel with their day.
func (db *DB) RemoveDay(ctx context.Context, tripID int64, day int) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		total, err := db.countDays(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if day < 1 || day > total {
			return fmt.Errorf("day %d of trip %d: %w", day, tripID, model.ErrNotFound)
		}
		steps := []struct {
			query string
			args  []any
		}{
			{"UPDATE trip_activities SET status = 'backlog', day = NULL WHERE trip_id = ? AND status = 'timeline' AND day = ?", []any{tripID, day}},
			{"DELETE FROM trip_days WHERE trip_id = ? AND day_number = ?", []any{tripID, day}},
			{"UPDATE trip_days SET day_number = day_number - 1 WHERE trip_id = ? AND day_number > ?", []any{tripID, day}},
			{"UPDATE trip_activities SET day = day - 1 WHERE trip_id = ? AND status = 'timeline' AND day > ?", []any{tripID, day}},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, db.q(s.query), s.args...); err != nil {
				return err
			}
		}
		return nil
	})
}
