package planner

import (
	"fmt"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// Drag is one finished drag gesture. Dest is nil when the item was dropped
// outside every list.
type Drag struct {
	ActivityID  int64
	Source      ListRef
	SourceIndex int
	Dest        *ListRef
	DestIndex   int
}

// PlacementUpdate is the single persistence change a drag produces.
type PlacementUpdate struct {
	ActivityID int64
	Placement  model.Placement
}

// Move applies a drag to b. It returns the new board and the placement update
// to persist, or a nil update when only display order changed (or nothing did).
// The item at SourceIndex must be ActivityID; a mismatch means the gesture was
// computed against a stale board and is rejected. The drop index is clamped to
// the destination list.
func Move(b Board, d Drag) (Board, *PlacementUpdate, error) {
	if d.Dest == nil {
		return b, nil, nil
	}
	dest := *d.Dest
	if d.Source == dest && d.SourceIndex == d.DestIndex {
		return b, nil, nil
	}

	src, err := b.List(d.Source)
	if err != nil {
		return b, nil, err
	}
	if d.SourceIndex < 0 || d.SourceIndex >= len(src) || src[d.SourceIndex].ID != d.ActivityID {
		return b, nil, fmt.Errorf("activity %d at %s[%d]: %w", d.ActivityID, d.Source, d.SourceIndex, model.ErrNotFound)
	}
	if _, err := b.List(dest); err != nil {
		return b, nil, err
	}

	next := b.Clone()
	srcItems, _ := next.List(d.Source)
	item := srcItems[d.SourceIndex]
	srcItems = append(srcItems[:d.SourceIndex:d.SourceIndex], srcItems[d.SourceIndex+1:]...)
	next.setList(d.Source, srcItems)

	if d.Source == dest {
		next.setList(dest, insertAt(srcItems, d.DestIndex, item))
		return next, nil, nil
	}

	var p model.Placement
	if dest.IsBacklog() {
		p = model.Backlog()
	} else {
		p = model.OnDay(dest.Day)
	}
	item.Status, item.Day = p.Status, p.Day
	destItems, _ := next.List(dest)
	next.setList(dest, insertAt(destItems, d.DestIndex, item))
	return next, &PlacementUpdate{ActivityID: item.ID, Placement: p}, nil
}

// Place moves an activity to the end of a list by id. It is Move without a
// gesture, used when replaying a placement on a refreshed board.
func Place(b Board, id int64, p model.Placement) (Board, error) {
	ref, i, ok := b.Find(id)
	if !ok {
		return b, fmt.Errorf("activity %d: %w", id, model.ErrNotFound)
	}
	dest := BacklogList()
	if p.Status == model.StatusTimeline && p.Day != nil {
		dest = DayList(*p.Day)
	}
	if ref == dest {
		return b, nil
	}
	items, _ := b.List(dest)
	next, _, err := Move(b, Drag{ActivityID: id, Source: ref, SourceIndex: i, Dest: &dest, DestIndex: len(items)})
	return next, err
}

func insertAt(items []model.Activity, i int, a model.Activity) []model.Activity {
	if i < 0 {
		i = 0
	}
	if i > len(items) {
		i = len(items)
	}
	out := make([]model.Activity, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, a)
	return append(out, items[i:]...)
}
