package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries by status. An empty slice matches every event.
type EventFilter struct {
	Statuses []string
}

// EventRepository stores events. CreateEvent assigns an identifier when the
// supplied one is empty and returns the stored row.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	GetEventByManageToken(ctx context.Context, token string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	UpdateEvent(ctx context.Context, id string, update EventUpdate) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// RSVPRepository stores RSVPs. The pair (event id, email) is unique.
type RSVPRepository interface {
	CreateRSVP(ctx context.Context, rsvp RSVP) (RSVP, error)
	FindRSVPByEventAndEmail(ctx context.Context, eventID, email string) (RSVP, error)
	ListRSVPsByEvent(ctx context.Context, eventID string) ([]RSVP, error)
	ListRSVPsByEmail(ctx context.Context, email string) ([]RSVP, error)
	ListRSVPs(ctx context.Context) ([]RSVP, error)
	CountRSVPs(ctx context.Context) (int, error)
	DeleteRSVP(ctx context.Context, id string) error
}

// ModeratorRepository stores moderator accounts.
type ModeratorRepository interface {
	CreateModerator(ctx context.Context, moderator Moderator) (Moderator, error)
	GetModerator(ctx context.Context, id string) (Moderator, error)
	GetModeratorByEmail(ctx context.Context, email string) (Moderator, error)
	ListModerators(ctx context.Context) ([]Moderator, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// NotificationRepository stores inbox entries and per-recipient preferences.
// Every entry operation is scoped to a recipient so one inbox never reads or
// changes another.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, recipient string) (int, error)
	SetNotificationRead(ctx context.Context, recipient, id string, readAt *time.Time) (Notification, error)
	DeleteNotification(ctx context.Context, recipient, id string) error
	DeleteNotifications(ctx context.Context, recipient string) (int, error)
	GetNotificationPreferences(ctx context.Context, recipient string) (NotificationPreferences, error)
	SaveNotificationPreferences(ctx context.Context, preferences NotificationPreferences) (NotificationPreferences, error)
}
