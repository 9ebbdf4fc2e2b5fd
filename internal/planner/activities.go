package planner

import (
	"fmt"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// InsertActivity appends a to the list its placement names, falling back to
// the backlog for a day the board does not have.
func InsertActivity(b Board, a model.Activity) Board {
	next := b.Clone()
	a = a.Clone()
	if a.Status == model.StatusTimeline && a.Day != nil && *a.Day >= 1 && *a.Day <= next.TotalDays() {
		col := &next.Days[*a.Day-1]
		col.Activities = append(col.Activities, a)
		return next
	}
	a.Status, a.Day = model.StatusBacklog, nil
	next.Backlog = append(next.Backlog, a)
	return next
}

// ReplaceActivity swaps the fields of an activity in whichever list holds it.
// Placement is kept from the board.
func ReplaceActivity(b Board, a model.Activity) (Board, error) {
	ref, i, ok := b.Find(a.ID)
	if !ok {
		return b, fmt.Errorf("activity %d: %w", a.ID, model.ErrNotFound)
	}
	next := b.Clone()
	items, _ := next.List(ref)
	a = a.Clone()
	a.Status, a.Day = items[i].Status, items[i].Day
	items[i] = a
	return next, nil
}

// RemoveActivity drops an activity from whichever list holds it. The bool
// is false when the board did not have it.
func RemoveActivity(b Board, id int64) (Board, bool) {
	ref, i, ok := b.Find(id)
	if !ok {
		return b, false
	}
	next := b.Clone()
	items, _ := next.List(ref)
	next.setList(ref, append(items[:i:i], items[i+1:]...))
	return next, true
}

// Reconcile takes the authoritative board and restores the display order
// the user arranged locally: activities that are still in the same list
// keep their local relative order, and anything new to that list follows in
// server order. The active day is carried over, clamped to the new range.
func Reconcile(local, authoritative Board) Board {
	out := authoritative.Clone()
	out.Backlog = keepOrder(local.Backlog, out.Backlog)
	for i := range out.Days {
		if i < len(local.Days) {
			out.Days[i].Activities = keepOrder(local.Days[i].Activities, out.Days[i].Activities)
		}
	}
	out.ActiveDay = local.ActiveDay
	if out.ActiveDay > out.TotalDays() {
		out.ActiveDay = out.TotalDays()
	}
	if out.ActiveDay < 1 && out.TotalDays() > 0 {
		out.ActiveDay = 1
	}
	return out
}

func keepOrder(local, fresh []model.Activity) []model.Activity {
	if len(fresh) == 0 {
		return fresh
	}
	byID := make(map[int64]model.Activity, len(fresh))
	for _, a := range fresh {
		byID[a.ID] = a
	}
	out := make([]model.Activity, 0, len(fresh))
	for _, a := range local {
		if f, ok := byID[a.ID]; ok {
			out = append(out, f)
			delete(byID, a.ID)
		}
	}
	for _, a := range fresh {
		if _, ok := byID[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}
