package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/itlightning/dateparse"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering applied to filtered events.
type SortKey string

const (
	// SortDateAscending orders events from the earliest to the latest date.
	SortDateAscending SortKey = "date-ascending"
	// SortDateDescending orders events from the latest to the earliest date.
	SortDateDescending SortKey = "date-descending"
	// SortTitleAscending orders events alphabetically by title.
	SortTitleAscending SortKey = "title-ascending"
	// SortTitleDescending orders events reverse-alphabetically by title.
	SortTitleDescending SortKey = "title-descending"
	// SortRSVPCountDescending orders events by attendee count, most popular first.
	SortRSVPCountDescending SortKey = "rsvp-count-descending"
)

// ParseSortKey resolves a caller supplied sort name. The short names used by the
// public listing page are accepted as aliases. Unknown values fall back to
// SortDateAscending.
func ParseSortKey(value string) SortKey {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(SortDateDescending), "date-desc":
		return SortDateDescending
	case string(SortTitleAscending), "name-asc":
		return SortTitleAscending
	case string(SortTitleDescending), "name-desc":
		return SortTitleDescending
	case string(SortRSVPCountDescending), "rsvp-desc":
		return SortRSVPCountDescending
	default:
		return SortDateAscending
	}
}

// Event is the subset of an event record the engine inspects.
type Event struct {
	ID            string
	Title         string
	Category      string
	Description   string
	Location      string
	Date          string
	Time          string
	Status        string
	AttendeeCount int
	CreatedAt     time.Time
}

// Filter describes the narrowing and ordering requested by a caller. Zero
// valued fields leave their axis inactive.
type Filter struct {
	SearchText   string
	Categories   []string
	DateFrom     *time.Time
	DateTo       *time.Time
	SelectedDate *time.Time
	Sort         SortKey
}

// IsEmpty reports whether no filter axis is active.
func (f Filter) IsEmpty() bool {
	return f.SearchText == "" &&
		len(f.Categories) == 0 &&
		f.DateFrom == nil &&
		f.DateTo == nil &&
		f.SelectedDate == nil
}

var (
	defaultLocation = time.UTC
	epoch           = time.Unix(0, 0).UTC()
)

// Engine narrows and orders event collections.
type Engine struct {
	location *time.Location
	tag      language.Tag
}

// NewEngine constructs an Engine that interprets calendar dates in loc and
// collates titles for tag. A nil location selects UTC and an undetermined tag
// selects English.
func NewEngine(loc *time.Location, tag language.Tag) *Engine {
	if loc == nil {
		loc = defaultLocation
	}
	if tag == language.Und {
		tag = language.English
	}
	return &Engine{location: loc, tag: tag}
}

// Location returns the time zone used to interpret calendar dates.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return defaultLocation
	}
	return e.location
}

// Apply returns the events passing every active axis of f, ordered by f.Sort.
//
// The input slice is never modified. Events whose date cannot be parsed sort as
// if they were scheduled at the Unix epoch and never match an active date axis.
func (e *Engine) Apply(events []Event, f Filter) []Event {
	matched := make([]entry, 0, len(events))
	for _, event := range events {
		at, ok := e.EventTime(event)
		if !e.matches(event, at, ok, f) {
			continue
		}
		if !ok {
			at = epoch
		}
		matched = append(matched, entry{event: event, at: at})
	}

	e.sortEntries(matched, f.Sort)

	result := make([]Event, len(matched))
	for i, item := range matched {
		result[i] = item.event
	}
	return result
}

// Matches reports whether a single event passes every active axis of f.
func (e *Engine) Matches(event Event, f Filter) bool {
	at, ok := e.EventTime(event)
	return e.matches(event, at, ok, f)
}

// EventTime resolves the scheduled instant of an event in the engine location.
// The boolean result is false when the date is missing or unparseable.
func (e *Engine) EventTime(event Event) (time.Time, bool) {
	loc := e.Location()
	date := strings.TrimSpace(event.Date)
	if date == "" {
		return time.Time{}, false
	}
	clock := strings.TrimSpace(event.Time)

	if clock != "" {
		for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
			if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
				return t, true
			}
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", date, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.In(loc), true
	}

	candidate := date
	if clock != "" {
		candidate = date + " " + clock
	}
	t, err := dateparse.ParseIn(candidate, loc)
	if err != nil {
		if clock == "" {
			return time.Time{}, false
		}
		if t, err = dateparse.ParseIn(date, loc); err != nil {
			return time.Time{}, false
		}
	}
	return t.In(loc), true
}

// StartOfDay truncates t to midnight of its calendar day in the engine location.
func (e *Engine) StartOfDay(t time.Time) time.Time {
	local := t.In(e.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.Location())
}

// EndOfDay returns the last millisecond of t's calendar day in the engine location.
func (e *Engine) EndOfDay(t time.Time) time.Time {
	return e.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func (e *Engine) matches(event Event, at time.Time, dated bool, f Filter) bool {
	if query := strings.ToLower(f.SearchText); query != "" {
		if !containsFold(event.Title, query) &&
			!containsFold(event.Location, query) &&
			!containsFold(event.Description, query) {
			return false
		}
	}

	if len(f.Categories) > 0 && !containsString(f.Categories, event.Category) {
		return false
	}

	if f.DateFrom != nil || f.DateTo != nil || f.SelectedDate != nil {
		if !dated {
			return false
		}
	}
	if f.DateFrom != nil && at.Before(e.StartOfDay(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && at.After(e.EndOfDay(*f.DateTo)) {
		return false
	}
	if f.SelectedDate != nil && !e.sameDay(at, *f.SelectedDate) {
		return false
	}

	return true
}

func (e *Engine) sameDay(a, b time.Time) bool {
	loc := e.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

type entry struct {
	event Event
	at    time.Time
}

func (e *Engine) sortEntries(entries []entry, key SortKey) {
	byDateAscending := func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	}

	switch ParseSortKey(string(key)) {
	case SortDateDescending:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].at.After(entries[j].at)
		})
	case SortTitleAscending, SortTitleDescending:
		collator := collate.New(e.tag)
		descending := ParseSortKey(string(key)) == SortTitleDescending
		sort.SliceStable(entries, func(i, j int) bool {
			cmp := collator.CompareString(entries[i].event.Title, entries[j].event.Title)
			if descending {
				return cmp > 0
			}
			return cmp < 0
		})
	case SortRSVPCountDescending:
		sort.SliceStable(entries, byDateAscending)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].event.AttendeeCount > entries[j].event.AttendeeCount
		})
	default:
		sort.SliceStable(entries, byDateAscending)
	}
}

// CategoryCounts tallies events per category label.
func CategoryCounts(events []Event) map[string]int {
	counts := make(map[string]int)
	for _, event := range events {
		counts[event.Category]++
	}
	return counts
}

func containsFold(value, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(value), lowerQuery)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
