package opml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportThenParse(t *testing.T) {
	price := 12.5
	day := func(n int) *int { return &n }
	trip := model.Trip{ID: 1, Title: "Rome"}
	days := []model.Day{{TripID: 1, Number: 1}, {TripID: 1, Number: 2, Title: "Museums"}}
	activities := []model.Activity{
		{ID: 1, Title: "Colosseum", Description: "Arena", Address: "Piazza del Colosseo", Price: &price, Tags: []string{"history", "outdoor"}, Rating: 4.5, Status: model.StatusTimeline, Day: day(1)},
		{ID: 2, Title: "Vatican", Description: "Museums", Address: "Viale Vaticano", Status: model.StatusTimeline, Day: day(2)},
		{ID: 3, Title: "Gelato", Description: "Ice cream", Address: "Trastevere", Status: model.StatusBacklog},
		{ID: 4, Title: "Orphan", Description: "Lost day", Address: "Nowhere", Status: model.StatusTimeline, Day: day(9)},
	}

	data, err := Export(trip, days, activities)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("<?xml")))
	assert.Contains(t, string(data), `text="Museums"`)

	doc, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Rome", doc.Title)
	assert.Equal(t, []string{"", "Museums"}, doc.Days)
	require.Len(t, doc.Entries, 4)
	for _, e := range doc.Entries {
		assert.NoError(t, e.Err)
	}

	first := doc.Entries[0]
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, "Colosseum", first.Activity.Title)
	require.NotNil(t, first.Activity.Price)
	assert.Equal(t, 12.5, *first.Activity.Price)
	assert.Equal(t, []string{"history", "outdoor"}, first.Activity.Tags)
	assert.Equal(t, 4.5, first.Activity.Rating)

	assert.Equal(t, 2, doc.Entries[1].Day)
	assert.Equal(t, 0, doc.Entries[2].Day)
	assert.Equal(t, "Gelato", doc.Entries[2].Activity.Title)
	assert.Equal(t, 0, doc.Entries[3].Day, "activities on a missing day export under the backlog")
}

func TestParseLooseOutline(t *testing.T) {
	src := `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Weekend</title></head>
  <body>
    <outline text="Bookshop" description="Browse" address="Main St"/>
    <outline text="Saturday">
      <outline text="Morning">
        <outline text="Market" description="Farmers market" address="Square"/>
      </outline>
      <outline title="Lunch" description="Pizza" address="Corner"/>
    </outline>
    <outline text="Day 2" type="day"/>
    <outline text="backlog">
      <outline text="Zoo" description="Animals" address="Park"/>
    </outline>
  </body>
</opml>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"Saturday", ""}, doc.Days)

	var got []string
	for _, e := range doc.Entries {
		got = append(got, e.Activity.Title)
		switch e.Activity.Title {
		case "Bookshop", "Zoo":
			assert.Equal(t, 0, e.Day, e.Activity.Title)
		default:
			assert.Equal(t, 1, e.Day, e.Activity.Title)
		}
	}
	assert.Equal(t, []string{"Bookshop", "Market", "Lunch", "Zoo"}, got)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("<opml><body><outline"))
	assert.Error(t, err)
}

func TestParseKeepsGoingPastBadEntries(t *testing.T) {
	src := `<opml version="2.0"><body>
  <outline text="Day 1" type="day">
    <outline text="X" price="cheap"/>
    <outline text="Y" description="d" address="a" rating="five"/>
    <outline text="Z" description="d" address="a" price="3"/>
  </outline>
</body></opml>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Entries, 3)

	assert.ErrorIs(t, doc.Entries[0].Err, model.ErrValidation)
	assert.ErrorContains(t, doc.Entries[0].Err, "bad price")
	assert.ErrorContains(t, doc.Entries[1].Err, "bad rating")
	assert.NoError(t, doc.Entries[2].Err)
	assert.Equal(t, 1, doc.Entries[2].Day)
}
