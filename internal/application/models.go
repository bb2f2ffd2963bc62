package application

import "time"

// Principal represents the caller invoking a service method. The zero value is
// an anonymous visitor.
type Principal struct {
	ModeratorID string
	Email       string
	IsModerator bool
	// EventID is set for organizers and limits them to the event their manage
	// token was issued for.
	EventID string
}

// CanManageEvent reports whether the principal may edit or inspect eventID.
func (p Principal) CanManageEvent(eventID string) bool {
	return p.IsModerator || (p.EventID != "" && p.EventID == eventID)
}

// InboxRecipient returns the inbox owned by the principal, or "" for visitors.
func (p Principal) InboxRecipient() string {
	switch {
	case p.IsModerator && p.ModeratorID != "":
		return ModeratorRecipient(p.ModeratorID)
	case p.EventID != "":
		return EventRecipient(p.EventID)
	}
	return ""
}

// ModeratorRecipient names the inbox of a moderator account.
func ModeratorRecipient(moderatorID string) string {
	return "moderator:" + moderatorID
}

// EventRecipient names the inbox of an event's organizer.
func EventRecipient(eventID string) string {
	return "event:" + eventID
}

// EventStatus is the moderation state of an event.
type EventStatus string

const (
	// EventStatusPending marks a submitted event awaiting review.
	EventStatusPending EventStatus = "pending"
	// EventStatusApproved marks an event visible to the public listing.
	EventStatusApproved EventStatus = "approved"
	// EventStatusRejected marks an event hidden after review.
	EventStatusRejected EventStatus = "rejected"
)

// Valid reports whether s is one of the known moderation states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moderation may move an event from s to next.
// Pending events may be approved or rejected, and reviewed events may be
// re-reviewed into the opposite state.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusPending:
		return next == EventStatusApproved || next == EventStatusRejected
	case EventStatusApproved:
		return next == EventStatusRejected
	case EventStatusRejected:
		return next == EventStatusApproved
	}
	return false
}

// Organizer identifies the person responsible for an event.
type Organizer struct {
	Name  string
	Email string
	Phone string
}

// Event is a community gathering listed on the site.
type Event struct {
	ID              string
	Title           string
	Category        string
	Description     string
	Date            string
	Time            string
	Location        string
	Organizer       Organizer
	Status          EventStatus
	RejectionReason string
	AttendeeCount   int
	// ManageToken is the organizer's bearer credential for this event. Only
	// the submission response carries it to the caller.
	ManageToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventInput captures caller provided event fields for a new submission.
type EventInput struct {
	Title          string
	Category       string
	Description    string
	Date           string
	Time           string
	Location       string
	OrganizerName  string
	OrganizerEmail string
	OrganizerPhone string
}

// EventDetails holds the descriptive fields an edit replaces together.
type EventDetails struct {
	Title       string
	Category    string
	Description string
	Date        string
	Time        string
	Location    string
	Organizer   Organizer
}

// EventPatch lists the event fields a store update may change. Nil fields are
// left untouched.
type EventPatch struct {
	Details         *EventDetails
	Status          *EventStatus
	RejectionReason *string
	AttendeeCount   *int
	UpdatedAt       time.Time
}

// EventListing is a filtered page of events plus the per-category tallies of
// the same result before its category axis was applied.
type EventListing struct {
	Events     []Event
	Categories map[string]int
}

// EventQuery narrows store listings by moderation state. An empty Statuses
// slice lists every event.
type EventQuery struct {
	Statuses []EventStatus
}

// Attendee identifies the person submitting an RSVP.
type Attendee struct {
	Name  string
	Email string
	Phone string
}

// RSVP records one attendee's intent to attend one event.
type RSVP struct {
	ID        string
	EventID   string
	Attendee  Attendee
	UserID    string
	Status    string
	CreatedAt time.Time
}

// SubmitRSVPParams wraps the data required to RSVP to an event.
type SubmitRSVPParams struct {
	EventID  string
	Attendee Attendee
	UserID   string
}

// RSVPResult captures the outcome of an RSVP submission.
//
// A duplicate submission is reported through ErrDuplicateRSVP together with a
// result whose Message is suitable for display.
type RSVPResult struct {
	RSVP            RSVP
	AttendeeCount   int
	Notified        bool
	NotificationErr error
	// CountErr reports that the RSVP was stored but the cached attendee count
	// could not be refreshed. AttendeeCount is then a best estimate.
	CountErr error
	Message  string
}

// RSVPNotification carries the template data sent to an organizer when
// someone RSVPs to their event.
type RSVPNotification struct {
	OrganizerEmail string
	OrganizerName  string
	EventID        string
	RSVPID         string
	EventTitle     string
	EventDate      string
	EventLocation  string
	AttendeeName   string
	AttendeeEmail  string
	AttendeePhone  string
	RSVPDate       string
	RSVPTime       string
	SubmittedAt    time.Time
}

// DashboardStats summarises moderation workload.
type DashboardStats struct {
	TotalEvents    int
	PendingEvents  int
	ApprovedEvents int
	RejectedEvents int
	TotalRSVPs     int
	Categories     map[string]int
}

// Moderator is an account permitted to review events.
type Moderator struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ModeratorCredentials models the authentication attributes persisted for a moderator.
type ModeratorCredentials struct {
	Moderator    Moderator
	PasswordHash string
	Disabled     bool
}

// RegisterModeratorParams captures the data required to create a moderator account.
type RegisterModeratorParams struct {
	Email       string
	DisplayName string
	Password    string
}

// Session represents an authenticated moderator session.
type Session struct {
	ID          string
	ModeratorID string
	Token       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a moderator.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Moderator Moderator
	Session   Session
}

// NotificationKind classifies inbox entries.
type NotificationKind string

const (
	// NotificationRSVPReceived tells an organizer someone RSVP'd to their event.
	NotificationRSVPReceived NotificationKind = "rsvp_received"
	// NotificationEventSubmitted tells moderators a new event awaits review.
	NotificationEventSubmitted NotificationKind = "event_submitted"
	// NotificationEventApproved tells an organizer their event is published.
	NotificationEventApproved NotificationKind = "event_approved"
	// NotificationEventRejected tells an organizer their event was rejected.
	NotificationEventRejected NotificationKind = "event_rejected"
	// NotificationEventUpdated reports an edit made by the other party.
	NotificationEventUpdated NotificationKind = "event_updated"
)

// Valid reports whether k is a known notification kind.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationRSVPReceived, NotificationEventSubmitted, NotificationEventApproved,
		NotificationEventRejected, NotificationEventUpdated:
		return true
	}
	return false
}

// InboxMessage is the content of an inbox entry before it is addressed.
type InboxMessage struct {
	Kind       NotificationKind
	EventID    string
	EventTitle string
	Title      string
	Message    string
}

// InboxNotification is a stored inbox entry.
type InboxNotification struct {
	ID         string
	Recipient  string
	Kind       NotificationKind
	EventID    string
	EventTitle string
	Title      string
	Message    string
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// NotificationPreferences controls which entries reach an inbox.
type NotificationPreferences struct {
	InApp         bool
	DisabledKinds []NotificationKind
	UpdatedAt     time.Time
}

// DefaultNotificationPreferences accepts every kind of entry.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{InApp: true}
}

// Accepts reports whether an entry of kind should be stored.
func (p NotificationPreferences) Accepts(kind NotificationKind) bool {
	if !p.InApp {
		return false
	}
	for _, disabled := range p.DisabledKinds {
		if disabled == kind {
			return false
		}
	}
	return true
}
