package http

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/catalog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var moderatorPrincipal = application.Principal{ModeratorID: "mod-1", Email: "mod@example.com", IsModerator: true}

var organizerPrincipal = application.Principal{Email: "ade@example.com", EventID: "a"}

// organizerStub accepts the single manage token "manage-a".
type organizerStub struct {
	err error
}

func (o organizerStub) AuthenticateOrganizer(_ context.Context, token string) (application.Principal, error) {
	if o.err != nil {
		return application.Principal{}, o.err
	}
	if token != "manage-a" {
		return application.Principal{}, application.ErrInvalidCredentials
	}
	return organizerPrincipal, nil
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}

type authServiceStub struct {
	result  application.AuthenticateResult
	err     error
	params  application.AuthenticateParams
	revoked []string
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.params = params
	return s.result, s.err
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.err
}

type eventServiceStub struct {
	mu         sync.Mutex
	events     []application.Event
	categories map[string]int
	err        error
	lastFilter catalog.Filter
	submitted  application.EventInput
	updatedBy  application.Principal
	updated    application.EventInput
}

func (s *eventServiceStub) SubmitEvent(_ context.Context, input application.EventInput) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = input
	if s.err != nil {
		return application.Event{}, s.err
	}
	return application.Event{
		ID:          "event-new",
		Title:       input.Title,
		Category:    input.Category,
		Date:        input.Date,
		Status:      application.EventStatusPending,
		Organizer:   application.Organizer{Name: input.OrganizerName, Email: input.OrganizerEmail},
		ManageToken: "manage-new",
	}, nil
}

func (s *eventServiceStub) UpdateEvent(_ context.Context, principal application.Principal, id string, input application.EventInput) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedBy = principal
	s.updated = input
	if s.err != nil {
		return application.Event{}, s.err
	}
	if !principal.CanManageEvent(id) {
		return application.Event{}, application.ErrUnauthorized
	}
	return application.Event{ID: id, Title: input.Title, Location: input.Location, Status: application.EventStatusApproved}, nil
}

func (s *eventServiceStub) GetEvent(_ context.Context, principal application.Principal, id string) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return application.Event{}, s.err
	}
	if !principal.CanManageEvent(id) {
		return application.Event{}, application.ErrUnauthorized
	}
	for _, event := range s.events {
		if event.ID == id {
			return event, nil
		}
	}
	return application.Event{}, application.ErrNotFound
}

func (s *eventServiceStub) BrowsePublicEvents(_ context.Context, filter catalog.Filter) (application.EventListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	if s.err != nil {
		return application.EventListing{}, s.err
	}
	categories := s.categories
	if categories == nil {
		categories = categoryCounts(s.events)
	}
	return application.EventListing{Events: s.events, Categories: categories}, nil
}

func (s *eventServiceStub) GetPublicEvent(_ context.Context, id string) (application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return application.Event{}, s.err
	}
	for _, event := range s.events {
		if event.ID == id {
			return event, nil
		}
	}
	return application.Event{}, application.ErrNotFound
}

func (s *eventServiceStub) ListPublicEvents(_ context.Context, filter catalog.Filter) ([]application.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

type feedStub struct {
	events []application.Event
}

func (f *feedStub) Write(w io.Writer, events []application.Event, _ time.Time) error {
	f.events = events
	_, err := io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	return err
}

type rsvpServiceStub struct {
	result     application.RSVPResult
	err        error
	count      int
	rsvps      []application.RSVP
	lastParams application.SubmitRSVPParams
	removed    [2]string
	byEmail    string
}

func (s *rsvpServiceStub) SubmitRSVP(_ context.Context, params application.SubmitRSVPParams) (application.RSVPResult, error) {
	s.lastParams = params
	return s.result, s.err
}

func (s *rsvpServiceStub) AttendeeCount(_ context.Context, _ string) (int, error) {
	return s.count, s.err
}

func (s *rsvpServiceStub) RemoveRSVP(_ context.Context, rsvpID, eventID string) (int, error) {
	s.removed = [2]string{rsvpID, eventID}
	return s.count, s.err
}

func (s *rsvpServiceStub) ListRSVPs(_ context.Context, principal application.Principal, eventID string) ([]application.RSVP, error) {
	if !principal.CanManageEvent(eventID) {
		return nil, application.ErrUnauthorized
	}
	return s.rsvps, s.err
}

func (s *rsvpServiceStub) ListAllRSVPs(_ context.Context, principal application.Principal) ([]application.RSVP, error) {
	if !principal.IsModerator {
		return nil, application.ErrUnauthorized
	}
	return s.rsvps, s.err
}

func (s *rsvpServiceStub) ListRSVPsByEmail(_ context.Context, principal application.Principal, email string) ([]application.RSVP, error) {
	if !principal.IsModerator {
		return nil, application.ErrUnauthorized
	}
	s.byEmail = strings.ToLower(email)
	return s.rsvps, s.err
}

type moderationServiceStub struct {
	event      application.Event
	stats      application.DashboardStats
	err        error
	lastStatus application.EventStatus
	reason     string
	deleted    string
}

func (s *moderationServiceStub) GetEvent(_ context.Context, _ application.Principal, id string) (application.Event, error) {
	if s.err != nil {
		return application.Event{}, s.err
	}
	event := s.event
	event.ID = id
	return event, nil
}

func (s *moderationServiceStub) ListEventsByStatus(_ context.Context, _ application.Principal, status application.EventStatus, _ catalog.Filter) ([]application.Event, error) {
	s.lastStatus = status
	if s.err != nil {
		return nil, s.err
	}
	return []application.Event{s.event}, nil
}

func (s *moderationServiceStub) ApproveEvent(_ context.Context, _ application.Principal, id string) (application.Event, error) {
	if s.err != nil {
		return application.Event{}, s.err
	}
	event := s.event
	event.ID = id
	event.Status = application.EventStatusApproved
	return event, nil
}

func (s *moderationServiceStub) RejectEvent(_ context.Context, _ application.Principal, id, reason string) (application.Event, error) {
	s.reason = reason
	if s.err != nil {
		return application.Event{}, s.err
	}
	event := s.event
	event.ID = id
	event.Status = application.EventStatusRejected
	event.RejectionReason = reason
	return event, nil
}

func (s *moderationServiceStub) DeleteEvent(_ context.Context, _ application.Principal, id string) error {
	s.deleted = id
	return s.err
}

func (s *moderationServiceStub) DashboardStats(_ context.Context, _ application.Principal) (application.DashboardStats, error) {
	return s.stats, s.err
}

type inboxServiceStub struct {
	mu            sync.Mutex
	notifications []application.InboxNotification
	preferences   application.NotificationPreferences
	err           error
	principal     application.Principal
	unreadOnly    bool
	touched       string
	read          bool
}

func (s *inboxServiceStub) record(principal application.Principal) error {
	s.principal = principal
	if principal.InboxRecipient() == "" {
		return application.ErrUnauthorized
	}
	return s.err
}

func (s *inboxServiceStub) List(_ context.Context, principal application.Principal, unreadOnly bool) ([]application.InboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadOnly = unreadOnly
	if err := s.record(principal); err != nil {
		return nil, err
	}
	return s.notifications, nil
}

func (s *inboxServiceStub) UnreadCount(_ context.Context, principal application.Principal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(principal); err != nil {
		return 0, err
	}
	return len(s.notifications), nil
}

func (s *inboxServiceStub) MarkRead(_ context.Context, principal application.Principal, id string) (application.InboxNotification, error) {
	return s.setRead(principal, id, true)
}

func (s *inboxServiceStub) MarkUnread(_ context.Context, principal application.Principal, id string) (application.InboxNotification, error) {
	return s.setRead(principal, id, false)
}

func (s *inboxServiceStub) setRead(principal application.Principal, id string, read bool) (application.InboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched, s.read = id, read
	if err := s.record(principal); err != nil {
		return application.InboxNotification{}, err
	}
	notification := application.InboxNotification{ID: id, Kind: application.NotificationRSVPReceived, Title: "New RSVP"}
	if read {
		at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
		notification.ReadAt = &at
	}
	return notification, nil
}

func (s *inboxServiceStub) Delete(_ context.Context, principal application.Principal, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = id
	return s.record(principal)
}

func (s *inboxServiceStub) Clear(_ context.Context, principal application.Principal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(principal); err != nil {
		return 0, err
	}
	return len(s.notifications), nil
}

func (s *inboxServiceStub) Preferences(_ context.Context, principal application.Principal) (application.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(principal); err != nil {
		return application.NotificationPreferences{}, err
	}
	return s.preferences, nil
}

func (s *inboxServiceStub) UpdatePreferences(_ context.Context, principal application.Principal, preferences application.NotificationPreferences) (application.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(principal); err != nil {
		return application.NotificationPreferences{}, err
	}
	s.preferences = preferences
	return preferences, nil
}
