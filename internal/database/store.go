// Package database provides storage backends for trips, days and activities.
package database

import (
	"context"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL backends satisfy this interface.
//
// Lookups of missing rows return errors wrapping model.ErrNotFound; malformed
// input returns a *model.ValidationError; adding a day past the configured
// maximum returns model.ErrCapacityExceeded.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	// MaxDays is the per-trip day ceiling enforced by AddDay.
	MaxDays() int

	// User operations
	CreateUser(ctx context.Context, in model.UserInput) (model.User, error)
	GetUsers(ctx context.Context) ([]model.User, error)

	// Trip operations
	CreateTrip(ctx context.Context, in model.TripInput) (model.Trip, error)
	GetTrip(ctx context.Context, tripID int64) (model.Trip, error)
	GetTrips(ctx context.Context, userID *int64) ([]model.Trip, error)
	UpdateTrip(ctx context.Context, tripID int64, in model.TripInput) (model.Trip, error)
	DeleteTrip(ctx context.Context, tripID int64) error

	// Activity operations
	GetActivities(ctx context.Context, tripID int64) ([]model.Activity, error)
	GetActivity(ctx context.Context, activityID int64) (model.Activity, error)
	SearchActivities(ctx context.Context, tripID int64, query string) ([]model.Activity, error)
	CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error)
	UpdateActivity(ctx context.Context, activityID int64, in model.ActivityInput) (model.Activity, error)
	MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) (model.Activity, error)
	DeleteActivity(ctx context.Context, tripID, activityID int64) error

	// Day operations
	GetDays(ctx context.Context, tripID int64) ([]model.Day, error)
	AddDay(ctx context.Context, tripID int64, title string) (model.Day, error)
	UpdateDayTitle(ctx context.Context, tripID int64, day int, title string) (model.Day, error)
	RemoveDay(ctx context.Context, tripID int64, day int) error

	// ImportOutline appends days and activities in one transaction; see
	// DB.ImportOutline.
	ImportOutline(ctx context.Context, tripID int64, days []string, activities []model.ActivityInput) (ImportResult, error)
}
