package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/jmoiron/sqlx"
)

// ImportResult reports what ImportOutline wrote.
type ImportResult struct {
	DaysAdded   int `json:"days_added"`
	DaysSkipped int `json:"days_skipped"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
}

// ImportOutline appends days after the trip's existing ones and creates
// activities, all in one transaction. A timeline placement on day n refers to
// days[n-1]. Days past the trip's capacity are not created and activities
// placed on them are skipped, as are activities that fail validation.
func (db *DB) ImportOutline(ctx context.Context, tripID int64, days []string, activities []model.ActivityInput) (ImportResult, error) {
	var res ImportResult
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res = ImportResult{}
		if err := db.lockTrip(ctx, tx, tripID); err != nil {
			return err
		}
		existing, err := db.countDays(ctx, tx, tripID)
		if err != nil {
			return err
		}

		fit := min(len(days), max(0, db.maxDays-existing))
		for i, title := range days[:fit] {
			_, err := tx.ExecContext(ctx, db.q("INSERT INTO trip_days (trip_id, day_number, title) VALUES (?, ?, ?)"),
				tripID, existing+i+1, strings.TrimSpace(title))
			if err != nil {
				return fmt.Errorf("insert day %d: %w", existing+i+1, err)
			}
		}
		res.DaysAdded, res.DaysSkipped = fit, len(days)-fit

		for _, in := range activities {
			if err := in.Validate(); err != nil {
				res.Skipped++
				continue
			}
			if p := in.Placement(); p.Status == model.StatusTimeline {
				if *p.Day > fit {
					res.Skipped++
					continue
				}
				day := existing + *p.Day
				in.Day = &day
			}
			if _, err := db.insertActivity(ctx, tx, tripID, in); err != nil {
				return fmt.Errorf("insert activity %q: %w", in.Title, err)
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
