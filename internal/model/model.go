// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Placement statuses.
const (
	StatusBacklog  = "backlog"
	StatusTimeline = "timeline"
)

// DefaultMaxDays is the observed ceiling on days per trip.
const DefaultMaxDays = 14

// DateLayout is the wire format of trip start and end dates.
const DateLayout = "2006-01-02"

// User owns trips.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Trip aggregates a date range and the days and activities belonging to it.
type Trip struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is something to do on a trip. Its placement lives in
// trip_activities but is flattened into Status and Day here.
type Activity struct {
	ID          int64     `json:"id"`
	TripID      int64     `json:"trip_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Price       *float64  `json:"price"`
	Tags        []string  `json:"tags"`
	Rating      float64   `json:"rating"`
	ImageURL    string    `json:"image_url"`
	Status      string    `json:"status"`
	Day         *int      `json:"day"`
	CreatedAt   time.Time `json:"created_at"`
}

// Placement returns where the activity currently sits.
func (a Activity) Placement() Placement {
	return Placement{Status: a.Status, Day: a.Day}
}

// Clone returns a deep copy so callers can mutate tags and pointers freely.
func (a Activity) Clone() Activity {
	c := a
	if a.Price != nil {
		p := *a.Price
		c.Price = &p
	}
	if a.Day != nil {
		d := *a.Day
		c.Day = &d
	}
	if a.Tags != nil {
		c.Tags = append([]string(nil), a.Tags...)
	}
	return c
}

// Placement is either the backlog or a specific timeline day.
type Placement struct {
	Status string `json:"status"`
	Day    *int   `json:"day"`
}

// Backlog is the placement of an unscheduled activity.
func Backlog() Placement {
	return Placement{Status: StatusBacklog}
}

// OnDay places an activity on day n of the timeline.
func OnDay(n int) Placement {
	return Placement{Status: StatusTimeline, Day: &n}
}

// Validate checks the status/day pairing. Range checks against the number of
// days happen where that number is known.
func (p Placement) Validate() error {
	switch p.Status {
	case StatusBacklog:
		if p.Day != nil {
			return &ValidationError{Message: "backlog placement cannot carry a day"}
		}
	case StatusTimeline:
		if p.Day == nil || *p.Day < 1 {
			return &ValidationError{Message: "timeline placement needs a day >= 1"}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("unknown status %q", p.Status)}
	}
	return nil
}

func (p Placement) String() string {
	if p.Status == StatusTimeline && p.Day != nil {
		return fmt.Sprintf("day %d", *p.Day)
	}
	return p.Status
}

// Day is one ordinal position in a trip's timeline.
type Day struct {
	TripID int64  `json:"trip_id"`
	Number int    `json:"day"`
	Title  string `json:"title"` // override; empty means the default title
}

// DisplayTitle returns the override or "Day N".
func (d Day) DisplayTitle() string {
	if strings.TrimSpace(d.Title) != "" {
		return d.Title
	}
	return DefaultDayTitle(d.Number)
}

// DefaultDayTitle is the title of a day that was never renamed.
func DefaultDayTitle(n int) string {
	return fmt.Sprintf("Day %d", n)
}

// ActivityInput carries the fields of a new activity.
type ActivityInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Price       *float64 `json:"price"`
	Tags        []string `json:"tags"`
	Rating      float64  `json:"rating"`
	ImageURL    string   `json:"image_url"`
	Status      string   `json:"status"`
	Day         *int     `json:"day"`
}

// Validate reports every missing required field at once.
func (in ActivityInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(in.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if in.Rating < 0 || in.Rating > 5 {
		return &ValidationError{Message: "rating must be between 0 and 5"}
	}
	return in.Placement().Validate()
}

// Placement defaults an absent status to the backlog.
func (in ActivityInput) Placement() Placement {
	if in.Status == "" {
		return Placement{Status: StatusBacklog, Day: in.Day}
	}
	return Placement{Status: in.Status, Day: in.Day}
}

// ActivityPatch is a partial edit; nil fields are left unchanged. A nil
// Price cannot express "no price", so ClearPrice removes it and wins over
// Price.
type ActivityPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	ClearPrice  bool      `json:"clear_price,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

// Apply merges the patch into a copy of a. Placement is never touched.
func (p ActivityPatch) Apply(a Activity) Activity {
	out := a.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	switch {
	case p.ClearPrice:
		out.Price = nil
	case p.Price != nil:
		price := *p.Price
		out.Price = &price
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Rating != nil {
		out.Rating = *p.Rating
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	return out
}

// TripInput carries the editable fields of a trip.
type TripInput struct {
	UserID      *int64 `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Validate requires a title and a well-formed, ordered date range.
func (in TripInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Missing: []string{"title"}}
	}
	var start, end time.Time
	var err error
	if in.StartDate != "" {
		if start, err = time.Parse(DateLayout, in.StartDate); err != nil {
			return &ValidationError{Message: "start_date must be YYYY-MM-DD"}
		}
	}
	if in.EndDate != "" {
		if end, err = time.Parse(DateLayout, in.EndDate); err != nil {
			return &ValidationError{Message: "end_date must be YYYY-MM-DD"}
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return &ValidationError{Message: "end_date is before start_date"}
	}
	return nil
}

// TripPatch is a partial trip edit; nil fields are left unchanged.
type TripPatch struct {
	UserID      *int64  `json:"user_id,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

// Apply merges the patch over t and returns the full input to store.
func (p TripPatch) Apply(t Trip) TripInput {
	in := TripInput{
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
	}
	if p.UserID != nil {
		id := *p.UserID
		in.UserID = &id
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.StartDate != nil {
		in.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	return in
}

// UserInput carries the fields of a new user. The password hash is stored
// as given.
type UserInput struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// Validate reports every missing required field at once.
func (in UserInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if in.PasswordHash == "" {
		missing = append(missing, "password_hash")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
