package planner

import (
	"context"

	"github.com/bryan-buckman/tripahead/internal/database"
	"github.com/bryan-buckman/tripahead/internal/model"
)

// StoreBackend runs a planner directly against a database.Store, without
// the HTTP hop. The CLI uses it for --local sessions.
type StoreBackend struct {
	Store database.Store
}

var _ Backend = StoreBackend{}

func (s StoreBackend) ListActivities(ctx context.Context, tripID int64) ([]model.Activity, error) {
	return s.Store.GetActivities(ctx, tripID)
}

func (s StoreBackend) ListDays(ctx context.Context, tripID int64) ([]model.Day, error) {
	return s.Store.GetDays(ctx, tripID)
}

func (s StoreBackend) SearchActivities(ctx context.Context, tripID int64, query string) ([]model.Activity, error) {
	return s.Store.SearchActivities(ctx, tripID, query)
}

func (s StoreBackend) CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error) {
	return s.Store.CreateActivity(ctx, tripID, in)
}

func (s StoreBackend) UpdateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	return s.Store.UpdateActivity(ctx, a.ID, model.ActivityInput{
		Title:       a.Title,
		Description: a.Description,
		Address:     a.Address,
		Price:       a.Price,
		Tags:        a.Tags,
		Rating:      a.Rating,
		ImageURL:    a.ImageURL,
	})
}

func (s StoreBackend) MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) error {
	_, err := s.Store.MoveActivity(ctx, tripID, activityID, p)
	return err
}

func (s StoreBackend) DeleteActivity(ctx context.Context, tripID, activityID int64) error {
	return s.Store.DeleteActivity(ctx, tripID, activityID)
}

func (s StoreBackend) AddDay(ctx context.Context, tripID int64, title string) (model.Day, error) {
	return s.Store.AddDay(ctx, tripID, title)
}

func (s StoreBackend) UpdateDayTitle(ctx context.Context, tripID int64, day int, title string) error {
	_, err := s.Store.UpdateDayTitle(ctx, tripID, day, title)
	return err
}

func (s StoreBackend) RemoveDay(ctx context.Context, tripID int64, day int) error {
	return s.Store.RemoveDay(ctx, tripID, day)
}
