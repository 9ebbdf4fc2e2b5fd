// Package planner holds the client-side projection of a trip: a backlog and
// one column per timeline day. Transitions on a Board are pure functions;
// Planner layers optimistic updates, persistence and rollback on top.
package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// ListRef names a drop target: the backlog (Day == 0) or a timeline day.
type ListRef struct {
	Day int
}

// BacklogList is the backlog drop target.
func BacklogList() ListRef { return ListRef{} }

// DayList is the drop target of day n.
func DayList(n int) ListRef { return ListRef{Day: n} }

// IsBacklog reports whether the ref names the backlog.
func (l ListRef) IsBacklog() bool { return l.Day == 0 }

func (l ListRef) String() string {
	if l.IsBacklog() {
		return "backlog"
	}
	return "day-" + strconv.Itoa(l.Day)
}

// ParseListRef accepts "backlog", "day-N", "day_N" and "timeline-N".
func ParseListRef(s string) (ListRef, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "backlog" {
		return BacklogList(), nil
	}
	for _, prefix := range []string{"day-", "day_", "timeline-"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 1 {
				break
			}
			return DayList(n), nil
		}
	}
	return ListRef{}, &model.ValidationError{Message: fmt.Sprintf("unknown list %q", s)}
}

// Column is one timeline day and the activities placed on it.
type Column struct {
	Day        model.Day
	Activities []model.Activity
}

// Board is the in-memory partition of a trip's activities. Days[i] is day
// i+1; ActiveDay is 0 only when there are no days.
type Board struct {
	TripID    int64
	Backlog   []model.Activity
	Days      []Column
	ActiveDay int
}

// NewBoard partitions activities by placement. Activities pointing at a day
// that does not exist are shown in the backlog so nothing is dropped.
func NewBoard(tripID int64, days []model.Day, activities []model.Activity) Board {
	b := Board{TripID: tripID, Days: make([]Column, len(days))}
	for i, d := range days {
		d.Number = i + 1
		d.TripID = tripID
		b.Days[i] = Column{Day: d}
	}
	for _, a := range activities {
		a = a.Clone()
		if a.Status == model.StatusTimeline && a.Day != nil && *a.Day >= 1 && *a.Day <= len(b.Days) {
			col := &b.Days[*a.Day-1]
			col.Activities = append(col.Activities, a)
			continue
		}
		a.Status, a.Day = model.StatusBacklog, nil
		b.Backlog = append(b.Backlog, a)
	}
	if len(b.Days) > 0 {
		b.ActiveDay = 1
	}
	return b
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	c := Board{TripID: b.TripID, ActiveDay: b.ActiveDay}
	c.Backlog = cloneActivities(b.Backlog)
	if b.Days != nil {
		c.Days = make([]Column, len(b.Days))
		for i, col := range b.Days {
			c.Days[i] = Column{Day: col.Day, Activities: cloneActivities(col.Activities)}
		}
	}
	return c
}

func cloneActivities(in []model.Activity) []model.Activity {
	if in == nil {
		return nil
	}
	out := make([]model.Activity, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// TotalDays is the number of timeline days.
func (b Board) TotalDays() int { return len(b.Days) }

// List returns the activities of a list.
func (b Board) List(ref ListRef) ([]model.Activity, error) {
	if ref.IsBacklog() {
		return b.Backlog, nil
	}
	if ref.Day < 1 || ref.Day > len(b.Days) {
		return nil, fmt.Errorf("day %d: %w", ref.Day, model.ErrNotFound)
	}
	return b.Days[ref.Day-1].Activities, nil
}

func (b *Board) setList(ref ListRef, items []model.Activity) {
	if ref.IsBacklog() {
		b.Backlog = items
		return
	}
	b.Days[ref.Day-1].Activities = items
}

// Find locates an activity.
func (b Board) Find(id int64) (ListRef, int, bool) {
	for i, a := range b.Backlog {
		if a.ID == id {
			return BacklogList(), i, true
		}
	}
	for d, col := range b.Days {
		for i, a := range col.Activities {
			if a.ID == id {
				return DayList(d + 1), i, true
			}
		}
	}
	return ListRef{}, 0, false
}

// Activity returns a copy of the activity with the given id.
func (b Board) Activity(id int64) (model.Activity, bool) {
	ref, i, ok := b.Find(id)
	if !ok {
		return model.Activity{}, false
	}
	items, _ := b.List(ref)
	return items[i].Clone(), true
}

// IDs lists every activity id, backlog first then day by day.
func (b Board) IDs() []int64 {
	var ids []int64
	for _, a := range b.Backlog {
		ids = append(ids, a.ID)
	}
	for _, col := range b.Days {
		for _, a := range col.Activities {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Day returns day n.
func (b Board) Day(n int) (model.Day, bool) {
	if n < 1 || n > len(b.Days) {
		return model.Day{}, false
	}
	return b.Days[n-1].Day, true
}
