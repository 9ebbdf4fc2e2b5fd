package planner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/tripahead/internal/database"
	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookedBackend runs a hook before every mutation and list call so tests can
// fail or hold back individual requests.
type hookedBackend struct {
	Backend
	hook func(ctx context.Context, op string, id int64) error
}

func (h *hookedBackend) before(ctx context.Context, op string, id int64) error {
	if h.hook == nil {
		return nil
	}
	return h.hook(ctx, op, id)
}

func (h *hookedBackend) ListActivities(ctx context.Context, tripID int64) ([]model.Activity, error) {
	if err := h.before(ctx, "list", 0); err != nil {
		return nil, err
	}
	return h.Backend.ListActivities(ctx, tripID)
}

func (h *hookedBackend) CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error) {
	if err := h.before(ctx, "create", 0); err != nil {
		return model.Activity{}, err
	}
	return h.Backend.CreateActivity(ctx, tripID, in)
}

func (h *hookedBackend) UpdateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	if err := h.before(ctx, "update", a.ID); err != nil {
		return model.Activity{}, err
	}
	return h.Backend.UpdateActivity(ctx, a)
}

func (h *hookedBackend) MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) error {
	if err := h.before(ctx, "move", activityID); err != nil {
		return err
	}
	return h.Backend.MoveActivity(ctx, tripID, activityID, p)
}

func (h *hookedBackend) DeleteActivity(ctx context.Context, tripID, activityID int64) error {
	if err := h.before(ctx, "delete", activityID); err != nil {
		return err
	}
	return h.Backend.DeleteActivity(ctx, tripID, activityID)
}

func (h *hookedBackend) AddDay(ctx context.Context, tripID int64, title string) (model.Day, error) {
	if err := h.before(ctx, "add-day", 0); err != nil {
		return model.Day{}, err
	}
	return h.Backend.AddDay(ctx, tripID, title)
}

func (h *hookedBackend) RemoveDay(ctx context.Context, tripID int64, day int) error {
	if err := h.before(ctx, "remove-day", int64(day)); err != nil {
		return err
	}
	return h.Backend.RemoveDay(ctx, tripID, day)
}

type fixture struct {
	store   *database.DB
	backend *hookedBackend
	trip    model.Trip
	ids     []int64
	planner *Planner
}

// newFixture creates a trip with the given number of days and one backlog
// activity per title, then loads a planner for it.
func newFixture(t *testing.T, days int, titles ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := database.NewSQLite(filepath.Join(t.TempDir(), "planner.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	trip, err := store.CreateTrip(ctx, model.TripInput{Title: "Kyoto"})
	require.NoError(t, err)
	for i := 0; i < days; i++ {
		_, err := store.AddDay(ctx, trip.ID, "")
		require.NoError(t, err)
	}
	f := &fixture{store: store, trip: trip}
	for _, title := range titles {
		a, err := store.CreateActivity(ctx, trip.ID, model.ActivityInput{Title: title, Description: title + " tour", Address: "Kyoto"})
		require.NoError(t, err)
		f.ids = append(f.ids, a.ID)
	}

	f.backend = &hookedBackend{Backend: StoreBackend{Store: store}}
	f.planner = New(trip.ID, f.backend)
	t.Cleanup(f.planner.Close)
	require.NoError(t, f.planner.Load(ctx))
	return f
}

func (f *fixture) stored(t *testing.T, id int64) model.Activity {
	t.Helper()
	a, err := f.store.GetActivity(context.Background(), id)
	require.NoError(t, err)
	return a
}

func wait(t *testing.T, cmd *Command) error {
	t.Helper()
	require.NotNil(t, cmd)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return cmd.Wait(ctx)
}

// gate returns a hook that holds back the matching request until release is
// closed, then fails it with err (nil lets it through).
func gate(op string, id int64, release <-chan struct{}, err error) func(context.Context, string, int64) error {
	return func(ctx context.Context, gotOp string, gotID int64) error {
		if gotOp != op || gotID != id {
			return nil
		}
		select {
		case <-release:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestDragPersistsPlacement(t *testing.T) {
	f := newFixture(t, 2, "Temple", "Market")
	a, b := f.ids[0], f.ids[1]

	cmd, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(2))})
	require.NoError(t, err)

	view := f.planner.Board()
	assert.Equal(t, []int64{b}, ids(view.Backlog))
	assert.Equal(t, []int64{a}, ids(view.Days[1].Activities))

	require.NoError(t, wait(t, cmd))
	assert.Equal(t, 0, f.planner.Pending())
	assert.NoError(t, f.planner.LastError())

	stored := f.stored(t, a)
	assert.Equal(t, model.StatusTimeline, stored.Status)
	require.NotNil(t, stored.Day)
	assert.Equal(t, 2, *stored.Day)

	view = f.planner.Board()
	assert.Equal(t, []int64{b}, ids(view.Backlog))
	assert.Equal(t, []int64{a}, ids(view.Days[1].Activities))
}

func TestDragFailureRestoresSnapshot(t *testing.T) {
	f := newFixture(t, 2, "A", "B")
	a, b := f.ids[0], f.ids[1]
	release := make(chan struct{})
	f.backend.hook = gate("move", a, release, fmt.Errorf("server down: %w", model.ErrPersistence))

	cmd, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(2))})
	require.NoError(t, err)

	view := f.planner.Board()
	assert.Equal(t, []int64{b}, ids(view.Backlog))
	assert.Equal(t, []int64{a}, ids(view.Days[1].Activities))
	assert.True(t, f.planner.Busy(a))
	assert.Equal(t, 1, f.planner.Pending())

	_, err = f.planner.Drag(Drag{ActivityID: a, Source: DayList(2), SourceIndex: 0, Dest: ref(DayList(1))})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.ErrorIs(t, wait(t, cmd), model.ErrPersistence)

	view = f.planner.Board()
	assert.Equal(t, []int64{a, b}, ids(view.Backlog))
	assert.Empty(t, view.Days[1].Activities)
	assert.False(t, f.planner.Busy(a))
	assert.ErrorIs(t, f.planner.LastError(), model.ErrPersistence)

	f.planner.ClearError()
	assert.NoError(t, f.planner.LastError())
	assert.Equal(t, model.StatusBacklog, f.stored(t, a).Status)
}

func TestRollbackKeepsOtherPendingChanges(t *testing.T) {
	f := newFixture(t, 2, "A", "B")
	a, b := f.ids[0], f.ids[1]
	release := make(chan struct{})
	f.backend.hook = gate("move", a, release, model.ErrPersistence)

	first, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(1))})
	require.NoError(t, err)
	second, err := f.planner.Drag(Drag{ActivityID: b, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(2))})
	require.NoError(t, err)
	assert.Equal(t, 2, f.planner.Pending())

	close(release)
	assert.ErrorIs(t, wait(t, first), model.ErrPersistence)
	require.NoError(t, wait(t, second))

	view := f.planner.Board()
	assert.Equal(t, []int64{a}, ids(view.Backlog))
	assert.Empty(t, view.Days[0].Activities)
	assert.Equal(t, []int64{b}, ids(view.Days[1].Activities))
}

func TestReorderStaysLocal(t *testing.T) {
	f := newFixture(t, 1, "A", "B", "C")
	a, b, c := f.ids[0], f.ids[1], f.ids[2]

	cmd, err := f.planner.Drag(Drag{ActivityID: c, Source: BacklogList(), SourceIndex: 2, Dest: ref(BacklogList()), DestIndex: 0})
	require.NoError(t, err)
	assert.Nil(t, cmd)
	assert.Equal(t, []int64{c, a, b}, ids(f.planner.Board().Backlog))

	require.NoError(t, f.planner.Load(context.Background()))
	assert.Equal(t, []int64{c, a, b}, ids(f.planner.Board().Backlog))

	// a failed move elsewhere does not undo the reorder
	f.backend.hook = func(context.Context, string, int64) error { return model.ErrPersistence }
	cmd, err = f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 1, Dest: ref(DayList(1))})
	require.NoError(t, err)
	assert.Error(t, wait(t, cmd))
	assert.Equal(t, []int64{c, a, b}, ids(f.planner.Board().Backlog))
}

func TestDropOutsideListIsNoop(t *testing.T) {
	f := newFixture(t, 1, "A")
	cmd, err := f.planner.Drag(Drag{ActivityID: f.ids[0], Source: BacklogList(), SourceIndex: 0})
	require.NoError(t, err)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, f.planner.Pending())
}

func TestRefreshFailureKeepsConfirmedChange(t *testing.T) {
	f := newFixture(t, 1, "A")
	a := f.ids[0]
	f.backend.hook = func(_ context.Context, op string, _ int64) error {
		if op == "list" {
			return model.ErrPersistence
		}
		return nil
	}

	cmd, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(1))})
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))

	assert.Equal(t, []int64{a}, ids(f.planner.Board().Days[0].Activities))
	assert.ErrorIs(t, f.planner.LastError(), model.ErrPersistence)
}

func TestPlannerAddDay(t *testing.T) {
	f := newFixture(t, 13)

	cmd, err := f.planner.AddDay("Departure")
	require.NoError(t, err)
	assert.Equal(t, 14, f.planner.Board().ActiveDay)
	require.NoError(t, wait(t, cmd))

	view := f.planner.Board()
	assert.Equal(t, 14, view.TotalDays())
	d, _ := view.Day(14)
	assert.Equal(t, "Departure", d.DisplayTitle())

	cmd, err = f.planner.AddDay("")
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
	assert.Nil(t, cmd)
	assert.Equal(t, 14, f.planner.Board().TotalDays())
}

func TestPlannerAddDayRollback(t *testing.T) {
	f := newFixture(t, 1)
	release := make(chan struct{})
	f.backend.hook = gate("add-day", 0, release, model.ErrPersistence)

	cmd, err := f.planner.AddDay("")
	require.NoError(t, err)
	assert.Equal(t, 2, f.planner.Board().TotalDays())

	_, err = f.planner.AddDay("")
	assert.ErrorIs(t, err, ErrBusy, "day structure changes are serialized")

	close(release)
	assert.Error(t, wait(t, cmd))
	view := f.planner.Board()
	assert.Equal(t, 1, view.TotalDays())
	assert.Equal(t, 1, view.ActiveDay)
}

func TestPlannerRemoveDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, "Castle", "Gallery")
	castle, gallery := f.ids[0], f.ids[1]
	_, err := f.store.MoveActivity(ctx, f.trip.ID, castle, model.OnDay(1))
	require.NoError(t, err)
	_, err = f.store.MoveActivity(ctx, f.trip.ID, gallery, model.OnDay(3))
	require.NoError(t, err)
	_, err = f.store.UpdateDayTitle(ctx, f.trip.ID, 3, "Museums")
	require.NoError(t, err)
	require.NoError(t, f.planner.Load(ctx))
	require.NoError(t, f.planner.SetActiveDay(3))

	cmd, err := f.planner.RemoveDay(1)
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))

	view := f.planner.Board()
	assert.Equal(t, 2, view.TotalDays())
	assert.Equal(t, []int64{castle}, ids(view.Backlog))
	assert.Equal(t, []int64{gallery}, ids(view.Days[1].Activities))
	d, _ := view.Day(2)
	assert.Equal(t, "Museums", d.DisplayTitle())
	assert.Equal(t, 2, view.ActiveDay)

	days, err := f.store.GetDays(ctx, f.trip.ID)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "Museums", days[1].DisplayTitle())
	g := f.stored(t, gallery)
	require.NotNil(t, g.Day)
	assert.Equal(t, 2, *g.Day)
	assert.Equal(t, model.StatusBacklog, f.stored(t, castle).Status)
}

func TestRemoveDayWaitsForBusyActivities(t *testing.T) {
	f := newFixture(t, 2, "A")
	a := f.ids[0]
	release := make(chan struct{})
	f.backend.hook = gate("move", a, release, nil)

	cmd, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(1))})
	require.NoError(t, err)

	_, err = f.planner.RemoveDay(1)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, wait(t, cmd))

	cmd, err = f.planner.RemoveDay(1)
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))
	assert.Equal(t, []int64{a}, ids(f.planner.Board().Backlog))
}

func TestPlannerRemoveDayOutOfRange(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.planner.RemoveDay(2)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPlannerUpdateDayTitle(t *testing.T) {
	f := newFixture(t, 2)
	cmd, err := f.planner.UpdateDayTitle(2, "Hiking")
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))

	d, _ := f.planner.Board().Day(2)
	assert.Equal(t, "Hiking", d.DisplayTitle())
	days, err := f.store.GetDays(context.Background(), f.trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hiking", days[1].Title)
}

func TestPlannerCreateActivity(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.planner.CreateActivity(model.ActivityInput{Title: "Onsen"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"description", "address"}, verr.Missing)

	cmd, err := f.planner.CreateActivity(model.ActivityInput{
		Title: "Onsen", Description: "Hot spring", Address: "Kurama", Status: model.StatusTimeline, Day: intp(1),
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))

	col := f.planner.Board().Days[0].Activities
	require.Len(t, col, 1)
	assert.Equal(t, "Onsen", col[0].Title)
}

func TestPlannerEditActivity(t *testing.T) {
	f := newFixture(t, 1, "Shrine")
	id := f.ids[0]
	_, err := f.store.MoveActivity(context.Background(), f.trip.ID, id, model.OnDay(1))
	require.NoError(t, err)
	require.NoError(t, f.planner.Load(context.Background()))

	title := "Fushimi Inari"
	cmd, err := f.planner.EditActivity(id, model.ActivityPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, f.planner.Board().Days[0].Activities[0].Title)
	require.NoError(t, wait(t, cmd))

	stored := f.stored(t, id)
	assert.Equal(t, title, stored.Title)
	assert.Equal(t, "Shrine tour", stored.Description)
	assert.Equal(t, model.StatusTimeline, stored.Status)

	empty := ""
	_, err = f.planner.EditActivity(id, model.ActivityPatch{Title: &empty})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.planner.EditActivity(9999, model.ActivityPatch{Title: &title})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPlannerEditClearsPrice(t *testing.T) {
	f := newFixture(t, 0, "Shrine")
	id := f.ids[0]
	price := 500.0
	cmd, err := f.planner.EditActivity(id, model.ActivityPatch{Price: &price})
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))
	require.NotNil(t, f.stored(t, id).Price)

	cmd, err = f.planner.EditActivity(id, model.ActivityPatch{ClearPrice: true})
	require.NoError(t, err)
	assert.Nil(t, f.planner.Board().Backlog[0].Price)
	require.NoError(t, wait(t, cmd))
	assert.Nil(t, f.stored(t, id).Price)
}

func TestPlannerEditFailureRestoresFields(t *testing.T) {
	f := newFixture(t, 0, "Shrine")
	id := f.ids[0]
	f.backend.hook = func(context.Context, string, int64) error { return model.ErrPersistence }

	title := "Renamed"
	cmd, err := f.planner.EditActivity(id, model.ActivityPatch{Title: &title})
	require.NoError(t, err)
	assert.Error(t, wait(t, cmd))
	assert.Equal(t, "Shrine", f.planner.Board().Backlog[0].Title)
}

func TestPlannerDeleteActivity(t *testing.T) {
	f := newFixture(t, 0, "A", "B")
	a, b := f.ids[0], f.ids[1]

	cmd, err := f.planner.DeleteActivity(a)
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, ids(f.planner.Board().Backlog))
	require.NoError(t, wait(t, cmd))

	_, err = f.store.GetActivity(context.Background(), a)
	assert.ErrorIs(t, err, model.ErrNotFound)

	cmd, err = f.planner.DeleteActivity(a)
	assert.NoError(t, err)
	assert.Nil(t, cmd, "already gone locally")
}

func TestDeleteActivityAlreadyGoneOnServer(t *testing.T) {
	f := newFixture(t, 0, "A")
	a := f.ids[0]
	require.NoError(t, f.store.DeleteActivity(context.Background(), f.trip.ID, a))

	cmd, err := f.planner.DeleteActivity(a)
	require.NoError(t, err)
	require.NoError(t, wait(t, cmd))
	assert.Empty(t, f.planner.Board().Backlog)
	assert.NoError(t, f.planner.LastError())
}

func TestDeleteActivityFailureRestores(t *testing.T) {
	f := newFixture(t, 0, "A", "B")
	f.backend.hook = func(_ context.Context, op string, _ int64) error {
		if op == "delete" {
			return errors.New("connection reset")
		}
		return nil
	}
	cmd, err := f.planner.DeleteActivity(f.ids[0])
	require.NoError(t, err)
	assert.Error(t, wait(t, cmd))
	assert.Equal(t, f.ids, ids(f.planner.Board().Backlog))
}

func TestPlannerSearch(t *testing.T) {
	f := newFixture(t, 0, "Museum of Art", "Ramen bar")
	ctx := context.Background()

	got, err := f.planner.Search(ctx, "m")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.planner.Search(ctx, "MUSE")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Museum of Art", got[0].Title)
}

func TestDayNavigation(t *testing.T) {
	f := newFixture(t, 3)
	assert.Equal(t, 1, f.planner.Board().ActiveDay)
	assert.Equal(t, 1, f.planner.PreviousDay())
	assert.Equal(t, 2, f.planner.NextDay())
	assert.Equal(t, 3, f.planner.NextDay())
	assert.Equal(t, 3, f.planner.NextDay())
	require.NoError(t, f.planner.SetActiveDay(1))
	assert.ErrorIs(t, f.planner.SetActiveDay(4), model.ErrNotFound)
	assert.Equal(t, 1, f.planner.Board().ActiveDay)
}

func TestCloseRollsBackQueuedCommands(t *testing.T) {
	f := newFixture(t, 2, "A", "B")
	a, b := f.ids[0], f.ids[1]
	f.backend.hook = gate("move", a, make(chan struct{}), nil)

	first, err := f.planner.Drag(Drag{ActivityID: a, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(1))})
	require.NoError(t, err)
	second, err := f.planner.Drag(Drag{ActivityID: b, Source: BacklogList(), SourceIndex: 0, Dest: ref(DayList(2))})
	require.NoError(t, err)

	f.planner.Close()
	assert.ErrorIs(t, wait(t, first), context.Canceled)
	assert.Error(t, wait(t, second))
	assert.Equal(t, []int64{a, b}, ids(f.planner.Board().Backlog))

	_, err = f.planner.AddDay("")
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Equal(t, 2, f.planner.Board().TotalDays())
}
