package persistence

import "time"

// Event represents a community event row.
type Event struct {
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
	Status          string
	RejectionReason *string
	AttendeeCount   int
	ManageToken     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventDetails holds the descriptive event columns an edit rewrites together.
type EventDetails struct {
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

// EventUpdate lists the mutable event columns. Nil fields are left untouched.
type EventUpdate struct {
	Details         *EventDetails
	Status          *string
	RejectionReason *string
	AttendeeCount   *int
	UpdatedAt       time.Time
}

// RSVP represents an attendee's reservation for an event.
type RSVP struct {
	ID        string
	EventID   string
	Name      string
	Email     string
	Phone     string
	UserID    string
	Status    string
	CreatedAt time.Time
}

// Moderator represents an account allowed to review events.
type Moderator struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a moderator.
type Session struct {
	ID          string
	ModeratorID string
	Token       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// Notification is one entry of a recipient's in-app inbox.
type Notification struct {
	ID         string
	Recipient  string
	Kind       string
	EventID    string
	EventTitle string
	Title      string
	Message    string
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// NotificationPreferences records which inbox entries a recipient accepts.
type NotificationPreferences struct {
	Recipient     string
	InApp         bool
	DisabledKinds []string
	UpdatedAt     time.Time
}
