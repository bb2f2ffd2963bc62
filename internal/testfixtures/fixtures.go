package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/persistence"
)

var (
	eventCounter     uint64
	rsvpCounter      uint64
	moderatorCounter uint64
	sessionCounter   uint64
)

var referenceTime = time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture is a deterministic event that can be materialised for
// application or persistence tests.
type EventFixture struct {
	ID              string
	Title           string
	Category        string
	Description     string
	Date            string
	Time            string
	Location        string
	OrganizerName   string
	OrganizerEmail  string
	OrganizerPhone  string
	Status          application.EventStatus
	RejectionReason string
	AttendeeCount   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an approved evening event with optional overrides.
// Each fixture is dated one day after the previous one.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := EventFixture{
		ID:             fmt.Sprintf("event-%03d", idx),
		Title:          fmt.Sprintf("Community Meetup %03d", idx),
		Category:       "Community",
		Description:    "An evening for neighbours to meet.",
		Date:           referenceTime.AddDate(0, 0, int(idx)).Format("2006-01-02"),
		Time:           "18:30",
		Location:       "Town Hall",
		OrganizerName:  "Ade Organizer",
		OrganizerEmail: fmt.Sprintf("organizer%03d@example.com", idx),
		Status:         application.EventStatusApproved,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the event identifier.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventTitle overrides the event title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// WithEventCategory overrides the event category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

// WithEventSchedule overrides the event date and time. An empty clock time
// marks an all-day event.
func WithEventSchedule(date, clock string) EventOption {
	return func(f *EventFixture) {
		f.Date = date
		f.Time = clock
	}
}

// WithEventStatus overrides the moderation status.
func WithEventStatus(status application.EventStatus) EventOption {
	return func(f *EventFixture) { f.Status = status }
}

// WithAttendeeCount overrides the cached attendee count.
func WithAttendeeCount(count int) EventOption {
	return func(f *EventFixture) { f.AttendeeCount = count }
}

// WithEventCreatedAt overrides both creation and update timestamps.
func WithEventCreatedAt(at time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = at
		f.UpdatedAt = at
	}
}

// Application converts the fixture into an application.Event.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:          f.ID,
		Title:       f.Title,
		Category:    f.Category,
		Description: f.Description,
		Date:        f.Date,
		Time:        f.Time,
		Location:    f.Location,
		Organizer: application.Organizer{
			Name:  f.OrganizerName,
			Email: f.OrganizerEmail,
			Phone: f.OrganizerPhone,
		},
		Status:          f.Status,
		RejectionReason: f.RejectionReason,
		AttendeeCount:   f.AttendeeCount,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Input converts the fixture into submission input.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:          f.Title,
		Category:       f.Category,
		Description:    f.Description,
		Date:           f.Date,
		Time:           f.Time,
		Location:       f.Location,
		OrganizerName:  f.OrganizerName,
		OrganizerEmail: f.OrganizerEmail,
		OrganizerPhone: f.OrganizerPhone,
	}
}

// Persistence converts the fixture into a persistence.Event.
func (f EventFixture) Persistence() persistence.Event {
	var reason *string
	if f.RejectionReason != "" {
		value := f.RejectionReason
		reason = &value
	}
	return persistence.Event{
		ID:              f.ID,
		Title:           f.Title,
		Category:        f.Category,
		Description:     f.Description,
		Date:            f.Date,
		Time:            f.Time,
		Location:        f.Location,
		OrganizerName:   f.OrganizerName,
		OrganizerEmail:  f.OrganizerEmail,
		OrganizerPhone:  f.OrganizerPhone,
		Status:          string(f.Status),
		RejectionReason: reason,
		AttendeeCount:   f.AttendeeCount,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// ----------------------------- RSVP fixtures -----------------------------

// RSVPFixture is a deterministic RSVP record.
type RSVPFixture struct {
	ID        string
	EventID   string
	Name      string
	Email     string
	Phone     string
	UserID    string
	Status    string
	CreatedAt time.Time
}

// RSVPOption configures the generated RSVP fixture.
type RSVPOption func(*RSVPFixture)

// NewRSVPFixture returns a guest RSVP for eventID with a unique attendee email.
func NewRSVPFixture(eventID string, opts ...RSVPOption) RSVPFixture {
	idx := atomic.AddUint64(&rsvpCounter, 1)
	fixture := RSVPFixture{
		ID:        fmt.Sprintf("rsvp-%03d", idx),
		EventID:   eventID,
		Name:      fmt.Sprintf("Attendee %03d", idx),
		Email:     fmt.Sprintf("attendee%03d@example.com", idx),
		UserID:    "guest",
		Status:    "attending",
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRSVPID overrides the RSVP identifier.
func WithRSVPID(id string) RSVPOption {
	return func(f *RSVPFixture) { f.ID = id }
}

// WithAttendeeEmail overrides the attendee email.
func WithAttendeeEmail(email string) RSVPOption {
	return func(f *RSVPFixture) { f.Email = email }
}

// WithRSVPCreatedAt overrides the submission time.
func WithRSVPCreatedAt(at time.Time) RSVPOption {
	return func(f *RSVPFixture) { f.CreatedAt = at }
}

// Application converts the fixture into an application.RSVP.
func (f RSVPFixture) Application() application.RSVP {
	return application.RSVP{
		ID:      f.ID,
		EventID: f.EventID,
		Attendee: application.Attendee{
			Name:  f.Name,
			Email: f.Email,
			Phone: f.Phone,
		},
		UserID:    f.UserID,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
	}
}

// Persistence converts the fixture into a persistence.RSVP.
func (f RSVPFixture) Persistence() persistence.RSVP {
	return persistence.RSVP{
		ID:        f.ID,
		EventID:   f.EventID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		UserID:    f.UserID,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
	}
}

// --------------------------- Moderator fixtures ---------------------------

// ModeratorFixture is a deterministic moderator account.
type ModeratorFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ModeratorOption configures the generated moderator fixture.
type ModeratorOption func(*ModeratorFixture)

// NewModeratorFixture returns an enabled moderator with a placeholder hash.
func NewModeratorFixture(opts ...ModeratorOption) ModeratorFixture {
	idx := atomic.AddUint64(&moderatorCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := ModeratorFixture{
		ID:           fmt.Sprintf("moderator-%03d", idx),
		Email:        fmt.Sprintf("moderator%03d@example.com", idx),
		DisplayName:  fmt.Sprintf("Moderator %03d", idx),
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithModeratorEmail overrides the moderator email.
func WithModeratorEmail(email string) ModeratorOption {
	return func(f *ModeratorFixture) { f.Email = email }
}

// WithPasswordHash overrides the stored password hash.
func WithPasswordHash(hash string) ModeratorOption {
	return func(f *ModeratorFixture) { f.PasswordHash = hash }
}

// WithModeratorDisabled marks the account as disabled.
func WithModeratorDisabled() ModeratorOption {
	return func(f *ModeratorFixture) { f.Disabled = true }
}

// Application converts the fixture into moderator credentials.
func (f ModeratorFixture) Application() application.ModeratorCredentials {
	return application.ModeratorCredentials{
		Moderator: application.Moderator{
			ID:          f.ID,
			Email:       f.Email,
			DisplayName: f.DisplayName,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.UpdatedAt,
		},
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
	}
}

// Persistence converts the fixture into a persistence.Moderator.
func (f ModeratorFixture) Persistence() persistence.Moderator {
	return persistence.Moderator{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture is a deterministic moderator session.
type SessionFixture struct {
	ID          string
	ModeratorID string
	Token       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session for moderatorID valid for one day.
func NewSessionFixture(moderatorID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		ModeratorID: moderatorID,
		Token:       fmt.Sprintf("token-%03d", idx),
		ExpiresAt:   created.Add(24 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionExpiry overrides the expiry instant.
func WithSessionExpiry(at time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = at }
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) { f.Token = token }
}

// Application converts the fixture into an application.Session.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		ModeratorID: f.ModeratorID,
		Token:       f.Token,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   cloneTime(f.RevokedAt),
	}
}

// Persistence converts the fixture into a persistence.Session.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		ModeratorID: f.ModeratorID,
		Token:       f.Token,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   cloneTime(f.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
