package planner

import (
	"fmt"
	"strings"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// AddDay appends day N+1 and makes it active. It fails with
// model.ErrCapacityExceeded when the board already has maxDays days.
func AddDay(b Board, title string, maxDays int) (Board, model.Day, error) {
	if maxDays <= 0 {
		maxDays = model.DefaultMaxDays
	}
	if b.TotalDays() >= maxDays {
		return b, model.Day{}, fmt.Errorf("trip already has %d days: %w", b.TotalDays(), model.ErrCapacityExceeded)
	}
	next := b.Clone()
	day := model.Day{TripID: b.TripID, Number: b.TotalDays() + 1, Title: strings.TrimSpace(title)}
	next.Days = append(next.Days, Column{Day: day})
	next.ActiveDay = day.Number
	return next, day, nil
}

// RemoveDay deletes day k. Its activities go to the end of the backlog,
// later days shift down by one keeping their titles, and the active day
// follows the rules of the timeline header: the removed day hands over to
// max(1, k-1), a later day keeps pointing at the same column.
func RemoveDay(b Board, k int) (Board, error) {
	if k < 1 || k > b.TotalDays() {
		return b, fmt.Errorf("day %d: %w", k, model.ErrNotFound)
	}
	next := b.Clone()
	for _, a := range next.Days[k-1].Activities {
		a.Status, a.Day = model.StatusBacklog, nil
		next.Backlog = append(next.Backlog, a)
	}
	next.Days = append(next.Days[:k-1], next.Days[k:]...)
	for i := k - 1; i < len(next.Days); i++ {
		n := i + 1
		next.Days[i].Day.Number = n
		for j := range next.Days[i].Activities {
			next.Days[i].Activities[j].Day = &n
		}
	}

	switch {
	case next.TotalDays() == 0:
		next.ActiveDay = 0
	case b.ActiveDay == k:
		next.ActiveDay = max(1, k-1)
	case b.ActiveDay > k:
		next.ActiveDay = b.ActiveDay - 1
	}
	if next.ActiveDay > next.TotalDays() {
		next.ActiveDay = next.TotalDays()
	}
	return next, nil
}

// SetDayTitle overrides the title of day k. An empty title restores the
// default "Day k".
func SetDayTitle(b Board, k int, title string) (Board, error) {
	if k < 1 || k > b.TotalDays() {
		return b, fmt.Errorf("day %d: %w", k, model.ErrNotFound)
	}
	next := b.Clone()
	next.Days[k-1].Day.Title = strings.TrimSpace(title)
	return next, nil
}

// SetActiveDay selects the day shown in the timeline.
func SetActiveDay(b Board, k int) (Board, error) {
	if k < 1 || k > b.TotalDays() {
		return b, fmt.Errorf("day %d: %w", k, model.ErrNotFound)
	}
	next := b.Clone()
	next.ActiveDay = k
	return next, nil
}
