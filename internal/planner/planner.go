package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bryan-buckman/tripahead/internal/model"
	"go.uber.org/zap"
)

// ErrBusy is returned when an activity (or the day structure) already has a
// command in flight.
var ErrBusy = errors.New("planner: item has a pending change")

// Backend is the persistence service as the planner consumes it.
type Backend interface {
	ListActivities(ctx context.Context, tripID int64) ([]model.Activity, error)
	ListDays(ctx context.Context, tripID int64) ([]model.Day, error)
	SearchActivities(ctx context.Context, tripID int64, query string) ([]model.Activity, error)
	CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error)
	UpdateActivity(ctx context.Context, a model.Activity) (model.Activity, error)
	MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) error
	DeleteActivity(ctx context.Context, tripID, activityID int64) error
	AddDay(ctx context.Context, tripID int64, title string) (model.Day, error)
	UpdateDayTitle(ctx context.Context, tripID int64, day int, title string) error
	RemoveDay(ctx context.Context, tripID int64, day int) error
}

// MinSearchLength is the shortest query sent to the backend.
const MinSearchLength = 2

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// WithMaxDays sets the day ceiling checked before AddDay reaches the backend.
func WithMaxDays(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxDays = n
		}
	}
}

// Planner is the view-model of one trip. The visible board is the last
// confirmed board with every pending command replayed on top, so a failed
// command disappears from the view without disturbing the others.
type Planner struct {
	tripID  int64
	backend Backend
	queue   *Queue
	log     *zap.Logger
	maxDays int

	mu        sync.Mutex
	confirmed Board
	view      Board
	pending   []*Command
	busy      map[int64]*Command
	dayBusy   bool
	lastErr   error
}

// New creates a planner for a trip. Call Load before anything else and
// Close when done.
func New(tripID int64, backend Backend, opts ...Option) *Planner {
	p := &Planner{
		tripID:  tripID,
		backend: backend,
		log:     zap.NewNop(),
		maxDays: model.DefaultMaxDays,
		busy:    make(map[int64]*Command),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.Int64("trip_id", tripID))
	p.confirmed = Board{TripID: tripID}
	p.view = p.confirmed
	p.queue = NewQueue(p.execute, p.log)
	return p
}

// Close stops the command worker; pending commands roll back.
func (p *Planner) Close() {
	p.queue.Close()
}

// Load fetches the authoritative board, replacing local state.
func (p *Planner) Load(ctx context.Context) error {
	b, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = Reconcile(p.view, b)
	p.view = Reconcile(p.view, p.replay())
	p.log.Info("planner loaded",
		zap.Int("days", b.TotalDays()),
		zap.Int("activities", len(b.IDs())))
	return nil
}

func (p *Planner) fetch(ctx context.Context) (Board, error) {
	days, err := p.backend.ListDays(ctx, p.tripID)
	if err != nil {
		return Board{}, fmt.Errorf("list days: %w", err)
	}
	activities, err := p.backend.ListActivities(ctx, p.tripID)
	if err != nil {
		return Board{}, fmt.Errorf("list activities: %w", err)
	}
	return NewBoard(p.tripID, days, activities), nil
}

// Board returns a copy of the optimistic board.
func (p *Planner) Board() Board {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view.Clone()
}

// Pending is the number of commands not yet confirmed.
func (p *Planner) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Busy reports whether an activity has a change in flight.
func (p *Planner) Busy(activityID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.busy[activityID]
	return ok
}

// LastError returns the most recent persistence failure, for an error banner.
func (p *Planner) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// ClearError dismisses the error banner.
func (p *Planner) ClearError() {
	p.mu.Lock()
	p.lastErr = nil
	p.mu.Unlock()
}

// --- Placement ---

// Drag applies a drag gesture optimistically and queues its single placement
// update. A nil command means nothing needs persisting (dropped outside a
// list, or reordered within one).
func (p *Planner) Drag(d Drag) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.busy[d.ActivityID]; ok {
		return nil, fmt.Errorf("activity %d: %w", d.ActivityID, ErrBusy)
	}
	next, update, err := Move(p.view, d)
	if err != nil {
		return nil, err
	}
	if update == nil {
		// Display order only: fold it into the confirmed board too so a
		// later rollback keeps it.
		p.view = next
		p.confirmed = Reconcile(next, p.confirmed)
		return nil, nil
	}

	u := *update
	cmd := newCommand(fmt.Sprintf("move activity %d to %s", u.ActivityID, u.Placement))
	cmd.activities = []int64{u.ActivityID}
	cmd.apply = func(b Board) (Board, error) { return Place(b, u.ActivityID, u.Placement) }
	cmd.persist = func(ctx context.Context) error {
		return p.backend.MoveActivity(ctx, p.tripID, u.ActivityID, u.Placement)
	}
	return cmd, p.submit(cmd, next)
}

// --- Days ---

// AddDay appends a day (default title when empty) and makes it active.
func (p *Planner) AddDay(title string) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dayBusy {
		return nil, fmt.Errorf("days: %w", ErrBusy)
	}
	next, day, err := AddDay(p.view, title, p.maxDays)
	if err != nil {
		return nil, err
	}
	cmd := newCommand(fmt.Sprintf("add day %d", day.Number))
	cmd.dayOp = true
	cmd.apply = func(b Board) (Board, error) {
		nb, _, err := AddDay(b, title, p.maxDays)
		return nb, err
	}
	cmd.persist = func(ctx context.Context) error {
		_, err := p.backend.AddDay(ctx, p.tripID, title)
		return err
	}
	return cmd, p.submit(cmd, next)
}

// RemoveDay deletes day k; its activities return to the backlog and later
// days are renumbered. The backend does both in one transaction, so on
// failure neither is visible.
func (p *Planner) RemoveDay(k int) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dayBusy {
		return nil, fmt.Errorf("days: %w", ErrBusy)
	}
	if k >= 1 && k <= p.view.TotalDays() {
		for _, a := range p.view.Days[k-1].Activities {
			if _, ok := p.busy[a.ID]; ok {
				return nil, fmt.Errorf("activity %d on day %d: %w", a.ID, k, ErrBusy)
			}
		}
	}
	next, err := RemoveDay(p.view, k)
	if err != nil {
		return nil, err
	}
	cmd := newCommand(fmt.Sprintf("remove day %d", k))
	cmd.dayOp = true
	cmd.apply = func(b Board) (Board, error) { return RemoveDay(b, k) }
	cmd.persist = func(ctx context.Context) error { return p.backend.RemoveDay(ctx, p.tripID, k) }
	return cmd, p.submit(cmd, next)
}

// UpdateDayTitle overrides the title of day k; numbering is unaffected.
func (p *Planner) UpdateDayTitle(k int, title string) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dayBusy {
		return nil, fmt.Errorf("days: %w", ErrBusy)
	}
	next, err := SetDayTitle(p.view, k, title)
	if err != nil {
		return nil, err
	}
	cmd := newCommand(fmt.Sprintf("rename day %d", k))
	cmd.dayOp = true
	cmd.apply = func(b Board) (Board, error) { return SetDayTitle(b, k, title) }
	cmd.persist = func(ctx context.Context) error { return p.backend.UpdateDayTitle(ctx, p.tripID, k, title) }
	return cmd, p.submit(cmd, next)
}

// SetActiveDay switches the visible day. It is local only.
func (p *Planner) SetActiveDay(k int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := SetActiveDay(p.view, k)
	if err != nil {
		return err
	}
	p.view = next
	p.confirmed.ActiveDay = min(k, p.confirmed.TotalDays())
	return nil
}

// NextDay moves to the following day, stopping at the last one.
func (p *Planner) NextDay() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view.ActiveDay < p.view.TotalDays() {
		p.view.ActiveDay++
		p.confirmed.ActiveDay = min(p.view.ActiveDay, p.confirmed.TotalDays())
	}
	return p.view.ActiveDay
}

// PreviousDay moves to the preceding day, stopping at day 1.
func (p *Planner) PreviousDay() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view.ActiveDay > 1 {
		p.view.ActiveDay--
		p.confirmed.ActiveDay = min(p.view.ActiveDay, p.confirmed.TotalDays())
	}
	return p.view.ActiveDay
}

// --- Activities ---

// CreateActivity validates and persists a new activity. Ids are assigned by
// the backend, so the activity shows up (at the end of its list) once the
// command completes.
func (p *Planner) CreateActivity(in model.ActivityInput) (*Command, error) {
	if in.Status == "" {
		in.Status = model.StatusBacklog
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var created *model.Activity
	cmd := newCommand(fmt.Sprintf("create activity %q", in.Title))
	cmd.apply = func(b Board) (Board, error) {
		if created == nil {
			return b, nil
		}
		if _, _, ok := b.Find(created.ID); ok {
			return b, nil
		}
		return InsertActivity(b, *created), nil
	}
	cmd.persist = func(ctx context.Context) error {
		a, err := p.backend.CreateActivity(ctx, p.tripID, in)
		if err != nil {
			return err
		}
		p.mu.Lock()
		created = &a
		p.mu.Unlock()
		return nil
	}
	return cmd, p.submit(cmd, p.view)
}

// EditActivity merges a partial edit into an activity wherever it sits and
// persists the merged record.
func (p *Planner) EditActivity(id int64, patch model.ActivityPatch) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.view.Activity(id)
	if !ok {
		return nil, fmt.Errorf("activity %d: %w", id, model.ErrNotFound)
	}
	if _, ok := p.busy[id]; ok {
		return nil, fmt.Errorf("activity %d: %w", id, ErrBusy)
	}
	merged := patch.Apply(current)
	in := model.ActivityInput{
		Title: merged.Title, Description: merged.Description, Address: merged.Address,
		Price: merged.Price, Tags: merged.Tags, Rating: merged.Rating, ImageURL: merged.ImageURL,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	next, err := ReplaceActivity(p.view, merged)
	if err != nil {
		return nil, err
	}
	cmd := newCommand(fmt.Sprintf("edit activity %d", id))
	cmd.activities = []int64{id}
	cmd.apply = func(b Board) (Board, error) {
		cur, ok := b.Activity(id)
		if !ok {
			return b, fmt.Errorf("activity %d: %w", id, model.ErrNotFound)
		}
		return ReplaceActivity(b, patch.Apply(cur))
	}
	cmd.persist = func(ctx context.Context) error {
		_, err := p.backend.UpdateActivity(ctx, merged)
		return err
	}
	return cmd, p.submit(cmd, next)
}

// DeleteActivity removes an activity from whichever list holds it. An
// activity that is already gone, locally or on the server, counts as
// deleted: the returned command is nil in the local case.
func (p *Planner) DeleteActivity(id int64) (*Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.busy[id]; ok {
		return nil, fmt.Errorf("activity %d: %w", id, ErrBusy)
	}
	next, ok := RemoveActivity(p.view, id)
	if !ok {
		p.log.Debug("delete of unknown activity ignored", zap.Int64("activity_id", id))
		return nil, nil
	}
	cmd := newCommand(fmt.Sprintf("delete activity %d", id))
	cmd.activities = []int64{id}
	cmd.apply = func(b Board) (Board, error) {
		nb, _ := RemoveActivity(b, id)
		return nb, nil
	}
	cmd.persist = func(ctx context.Context) error {
		err := p.backend.DeleteActivity(ctx, p.tripID, id)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}
	return cmd, p.submit(cmd, next)
}

// Search looks activities up by text. Queries shorter than MinSearchLength
// return nothing without a round trip.
func (p *Planner) Search(ctx context.Context, query string) ([]model.Activity, error) {
	if len([]rune(strings.TrimSpace(query))) < MinSearchLength {
		return nil, nil
	}
	return p.backend.SearchActivities(ctx, p.tripID, query)
}

// --- Command plumbing ---

// submit records cmd as pending with next as the optimistic view. Must be
// called with p.mu held.
func (p *Planner) submit(cmd *Command, next Board) error {
	for _, id := range cmd.activities {
		p.busy[id] = cmd
	}
	if cmd.dayOp {
		p.dayBusy = true
	}
	p.pending = append(p.pending, cmd)
	prev := p.view
	p.view = next
	if err := p.queue.Submit(cmd); err != nil {
		p.drop(cmd)
		p.view = prev
		return err
	}
	return nil
}

// drop forgets a command. Must be called with p.mu held.
func (p *Planner) drop(cmd *Command) {
	for i, c := range p.pending {
		if c == cmd {
			p.pending = append(p.pending[:i:i], p.pending[i+1:]...)
			break
		}
	}
	for _, id := range cmd.activities {
		if p.busy[id] == cmd {
			delete(p.busy, id)
		}
	}
	if cmd.dayOp {
		p.dayBusy = false
	}
}

// replay rebuilds the view from the confirmed board, in confirmed order.
// Must be called with p.mu held.
func (p *Planner) replay() Board {
	b := p.confirmed.Clone()
	for _, cmd := range p.pending {
		nb, err := cmd.apply(b)
		if err != nil {
			p.log.Debug("pending command no longer applies",
				zap.String("command", cmd.Description), zap.Error(err))
			continue
		}
		b = nb
	}
	return b
}

// execute runs on the queue worker.
func (p *Planner) execute(ctx context.Context, cmd *Command) {
	err := cmd.persist(ctx)
	var fresh Board
	var fetchErr error
	if err == nil {
		fresh, fetchErr = p.fetch(ctx)
	}

	p.mu.Lock()
	p.drop(cmd)
	switch {
	case err != nil:
		// Rebuild from the confirmed board; the failed change simply is not
		// replayed, so the view is the pre-move snapshot plus whatever else
		// is still pending.
		err = fmt.Errorf("%s: %w", cmd.Description, err)
		p.lastErr = err
		p.view = p.replay()
		p.log.Warn("command failed, rolling back", zap.String("id", cmd.ID.String()), zap.Error(err))
	case fetchErr != nil:
		// The change is durable; only the refresh failed.
		if nb, aerr := cmd.apply(p.confirmed); aerr == nil {
			p.confirmed = Reconcile(p.view, nb)
		}
		p.view = Reconcile(p.view, p.replay())
		p.lastErr = fmt.Errorf("refresh after %s: %w", cmd.Description, fetchErr)
		p.log.Warn("refresh failed", zap.String("id", cmd.ID.String()), zap.Error(fetchErr))
	default:
		p.confirmed = Reconcile(p.view, fresh)
		p.view = Reconcile(p.view, p.replay())
	}
	p.mu.Unlock()

	cmd.finish(err)
}
