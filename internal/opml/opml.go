// Package opml handles importing and exporting trip outlines as OPML files.
//
// A trip exports as one outline per timeline day, each holding that day's
// activities, followed by a "Backlog" outline. Activity fields travel as
// outline attributes.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// Outline types.
const (
	TypeDay      = "day"
	TypeBacklog  = "backlog"
	TypeActivity = "activity"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a day section, the backlog section or a single activity.
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Address     string    `xml:"address,attr,omitempty"`
	Price       string    `xml:"price,attr,omitempty"`
	Rating      string    `xml:"rating,attr,omitempty"`
	Category    string    `xml:"category,attr,omitempty"`
	URL         string    `xml:"url,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// Entry is one activity read from an outline with the day it was listed
// under. Err is set when an attribute could not be read; the rest of the
// document is still parsed.
type Entry struct {
	Day      int // 0 for the backlog
	Activity model.ActivityInput
	Err      error
}

// Document is a parsed trip outline.
type Document struct {
	Title string
	// Days holds one title override per day section, "" where the section
	// carried the default title.
	Days    []string
	Entries []Entry
}

// Parse reads an OPML document. Top-level sections other than the backlog
// are numbered as days 1, 2, ... in the order they appear; activities outside
// any section go to the backlog. Only malformed XML fails the whole document.
func Parse(r io.Reader) (Document, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode opml: %w", err)
	}
	out := Document{Title: doc.Head.Title}

	var walk func(outlines []Outline, day int)
	walk = func(outlines []Outline, day int) {
		for _, o := range outlines {
			if len(o.Outlines) > 0 && o.Type != TypeActivity {
				// Nested folders flatten into their section.
				walk(o.Outlines, day)
				continue
			}
			in, err := activityInput(o)
			out.Entries = append(out.Entries, Entry{Day: day, Activity: in, Err: err})
		}
	}

	for _, o := range doc.Body.Outlines {
		if !isSection(o) {
			walk([]Outline{o}, 0)
			continue
		}
		day := 0
		if !isBacklog(o) {
			day = len(out.Days) + 1
			title := strings.TrimSpace(name(o))
			if title == model.DefaultDayTitle(day) {
				title = ""
			}
			out.Days = append(out.Days, title)
		}
		walk(o.Outlines, day)
	}
	return out, nil
}

func isSection(o Outline) bool {
	return o.Type == TypeDay || o.Type == TypeBacklog || (o.Type == "" && len(o.Outlines) > 0)
}

func isBacklog(o Outline) bool {
	return o.Type == TypeBacklog || strings.EqualFold(strings.TrimSpace(name(o)), "backlog")
}

func name(o Outline) string {
	if o.Text != "" {
		return o.Text
	}
	return o.Title
}

func activityInput(o Outline) (model.ActivityInput, error) {
	in := model.ActivityInput{
		Title:       strings.TrimSpace(name(o)),
		Description: o.Description,
		Address:     o.Address,
		ImageURL:    o.URL,
	}
	if o.Price != "" {
		p, err := strconv.ParseFloat(o.Price, 64)
		if err != nil {
			return in, &model.ValidationError{Message: fmt.Sprintf("activity %q: bad price %q", in.Title, o.Price)}
		}
		in.Price = &p
	}
	if o.Rating != "" {
		r, err := strconv.ParseFloat(o.Rating, 64)
		if err != nil {
			return in, &model.ValidationError{Message: fmt.Sprintf("activity %q: bad rating %q", in.Title, o.Rating)}
		}
		in.Rating = r
	}
	for _, tag := range strings.Split(o.Category, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			in.Tags = append(in.Tags, tag)
		}
	}
	return in, nil
}

// Export generates an OPML document for a trip. Activities are grouped under
// their day; anything not on an existing day is listed under the backlog.
func Export(trip model.Trip, days []model.Day, activities []model.Activity) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       trip.Title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	sections := make([]Outline, len(days))
	for i, d := range days {
		sections[i] = Outline{Text: d.DisplayTitle(), Type: TypeDay}
	}
	backlog := Outline{Text: "Backlog", Type: TypeBacklog}

	for _, a := range activities {
		o := activityOutline(a)
		if a.Status == model.StatusTimeline && a.Day != nil && *a.Day >= 1 && *a.Day <= len(sections) {
			sections[*a.Day-1].Outlines = append(sections[*a.Day-1].Outlines, o)
			continue
		}
		backlog.Outlines = append(backlog.Outlines, o)
	}
	doc.Body.Outlines = append(sections, backlog)

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

func activityOutline(a model.Activity) Outline {
	o := Outline{
		Text:        a.Title,
		Type:        TypeActivity,
		Description: a.Description,
		Address:     a.Address,
		Category:    strings.Join(a.Tags, ","),
		URL:         a.ImageURL,
	}
	if a.Price != nil {
		o.Price = strconv.FormatFloat(*a.Price, 'f', -1, 64)
	}
	if a.Rating != 0 {
		o.Rating = strconv.FormatFloat(a.Rating, 'f', -1, 64)
	}
	return o
}
