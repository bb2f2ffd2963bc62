// Package calendar renders approved events as an iCalendar feed.
package calendar

import (
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"golang.org/x/text/language"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/catalog"
)

// DefaultDuration is the length given to events that carry a start time.
const DefaultDuration = 2 * time.Hour

// Feed turns events into a VCALENDAR document.
type Feed struct {
	engine   *catalog.Engine
	name     string
	host     string
	duration time.Duration
}

// NewFeed returns a feed resolving event dates with engine. host qualifies
// event UIDs.
func NewFeed(engine *catalog.Engine, name, host string) *Feed {
	if engine == nil {
		engine = catalog.NewEngine(nil, language.Und)
	}
	if strings.TrimSpace(host) == "" {
		host = "community-events"
	}
	return &Feed{engine: engine, name: name, host: host, duration: DefaultDuration}
}

// Write serializes events to w. Events without a resolvable date are left out.
func (f *Feed) Write(w io.Writer, events []application.Event, stamp time.Time) error {
	_, err := io.WriteString(w, f.Render(events, stamp))
	return err
}

// Render returns events as an iCalendar string.
func (f *Feed) Render(events []application.Event, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//community-events//events feed//EN")
	if f.name != "" {
		cal.SetXWRCalName(f.name)
	}

	for _, event := range events {
		start, ok := f.engine.EventTime(catalog.Event{Date: event.Date, Time: event.Time})
		if !ok {
			continue
		}

		vevent := cal.AddEvent(event.ID + "@" + f.host)
		vevent.SetDtStampTime(stamp.UTC())
		if !event.CreatedAt.IsZero() {
			vevent.SetCreatedTime(event.CreatedAt.UTC())
		}
		if !event.UpdatedAt.IsZero() {
			vevent.SetModifiedAt(event.UpdatedAt.UTC())
		}

		if strings.TrimSpace(event.Time) == "" {
			vevent.SetAllDayStartAt(start)
			vevent.SetAllDayEndAt(start.AddDate(0, 0, 1))
		} else {
			vevent.SetStartAt(start.UTC())
			vevent.SetEndAt(start.Add(f.duration).UTC())
		}

		vevent.SetSummary(event.Title)
		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}
		if event.Location != "" {
			vevent.SetLocation(event.Location)
		}
		if event.Organizer.Email != "" {
			vevent.SetOrganizer("mailto:"+event.Organizer.Email, ics.WithCN(event.Organizer.Name))
		}
		if event.Category != "" {
			vevent.SetProperty(ics.ComponentPropertyCategories, event.Category)
		}
	}

	return cal.Serialize()
}
