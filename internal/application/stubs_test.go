package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/community-events/internal/persistence"
)

// eventStoreStub keeps events in memory and counts calls so tests can assert
// that no I/O happened.
type eventStoreStub struct {
	mu     sync.Mutex
	events map[string]Event
	order  []string
	nextID int
	err    error
	// updateErr fails UpdateEvent alone.
	updateErr error
	calls     int
	updates   []EventPatch
}

func newEventStoreStub(seed ...Event) *eventStoreStub {
	stub := &eventStoreStub{events: make(map[string]Event)}
	for _, event := range seed {
		stub.events[event.ID] = event
		stub.order = append(stub.order, event.ID)
	}
	return stub
}

func (s *eventStoreStub) get(id string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *eventStoreStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *eventStoreStub) ListEvents(ctx context.Context, query EventQuery) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	allowed := make(map[EventStatus]bool, len(query.Statuses))
	for _, status := range query.Statuses {
		allowed[status] = true
	}

	var out []Event
	for _, id := range s.order {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		if len(allowed) > 0 && !allowed[event.Status] {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *eventStoreStub) GetEvent(ctx context.Context, id string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Event{}, s.err
	}
	event, ok := s.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (s *eventStoreStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Event{}, s.err
	}
	s.nextID++
	event.ID = fmt.Sprintf("event-%d", s.nextID)
	s.events[event.ID] = event
	s.order = append(s.order, event.ID)
	return event, nil
}

func (s *eventStoreStub) UpdateEvent(ctx context.Context, id string, patch EventPatch) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Event{}, s.err
	}
	if s.updateErr != nil {
		return Event{}, s.updateErr
	}
	event, ok := s.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	if d := patch.Details; d != nil {
		event.Title, event.Category, event.Description = d.Title, d.Category, d.Description
		event.Date, event.Time, event.Location = d.Date, d.Time, d.Location
		event.Organizer = d.Organizer
	}
	if patch.Status != nil {
		event.Status = *patch.Status
	}
	if patch.RejectionReason != nil {
		event.RejectionReason = *patch.RejectionReason
	}
	if patch.AttendeeCount != nil {
		event.AttendeeCount = *patch.AttendeeCount
	}
	event.UpdatedAt = patch.UpdatedAt
	s.events[id] = event
	s.updates = append(s.updates, patch)
	return event, nil
}

func (s *eventStoreStub) GetEventByManageToken(ctx context.Context, token string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Event{}, s.err
	}
	for _, event := range s.events {
		if event.ManageToken != "" && event.ManageToken == token {
			return event, nil
		}
	}
	return Event{}, persistence.ErrNotFound
}

func (s *eventStoreStub) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// rsvpStoreStub enforces one RSVP per event and email the way the database
// constraint does.
type rsvpStoreStub struct {
	mu        sync.Mutex
	rsvps     []RSVP
	nextID    int
	err       error
	createErr error
	calls     int
}

func newRSVPStoreStub(seed ...RSVP) *rsvpStoreStub {
	return &rsvpStoreStub{rsvps: append([]RSVP(nil), seed...)}
}

func (s *rsvpStoreStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *rsvpStoreStub) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rsvps)
}

func (s *rsvpStoreStub) ListRSVPsByEvent(ctx context.Context, eventID string) ([]RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []RSVP
	for _, rsvp := range s.rsvps {
		if rsvp.EventID == eventID {
			out = append(out, rsvp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *rsvpStoreStub) FindRSVPByEventAndEmail(ctx context.Context, eventID, email string) (RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return RSVP{}, s.err
	}
	for _, rsvp := range s.rsvps {
		if rsvp.EventID == eventID && rsvp.Attendee.Email == email {
			return rsvp, nil
		}
	}
	return RSVP{}, persistence.ErrNotFound
}

func (s *rsvpStoreStub) CreateRSVP(ctx context.Context, rsvp RSVP) (RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return RSVP{}, s.err
	}
	if s.createErr != nil {
		return RSVP{}, s.createErr
	}
	for _, existing := range s.rsvps {
		if existing.EventID == rsvp.EventID && existing.Attendee.Email == rsvp.Attendee.Email {
			return RSVP{}, fmt.Errorf("insert rsvp: %w", persistence.ErrDuplicate)
		}
	}
	s.nextID++
	rsvp.ID = fmt.Sprintf("rsvp-%d", s.nextID)
	s.rsvps = append(s.rsvps, rsvp)
	return rsvp, nil
}

func (s *rsvpStoreStub) DeleteRSVP(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	for i, rsvp := range s.rsvps {
		if rsvp.ID == id {
			s.rsvps = append(s.rsvps[:i], s.rsvps[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *rsvpStoreStub) ListRSVPs(ctx context.Context) ([]RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]RSVP(nil), s.rsvps...), nil
}

func (s *rsvpStoreStub) ListRSVPsByEmail(ctx context.Context, email string) ([]RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []RSVP
	for _, rsvp := range s.rsvps {
		if rsvp.Attendee.Email == email {
			out = append(out, rsvp)
		}
	}
	return out, nil
}

func (s *rsvpStoreStub) CountRSVPs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return len(s.rsvps), nil
}

type notifierStub struct {
	mu            sync.Mutex
	notifications []RSVPNotification
	recipients    []string
	err           error
	block         bool
}

func (n *notifierStub) Notify(ctx context.Context, organizerEmail string, notification RSVPNotification) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.recipients = append(n.recipients, organizerEmail)
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *notifierStub) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notifications)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var moderator = Principal{ModeratorID: "mod-1", Email: "ada@example.com", IsModerator: true}

func approvedEvent(id string) Event {
	return Event{
		ID:          id,
		Title:       "Osun Festival",
		Category:    "Festival",
		Description: "Annual festival",
		Date:        "2026-08-15",
		Time:        "10:00",
		Location:    "Osogbo",
		Organizer:   Organizer{Name: "Ade", Email: "ade@example.com"},
		Status:      EventStatusApproved,
	}
}

// notificationStoreStub keeps inbox entries in memory, scoped by recipient.
type notificationStoreStub struct {
	mu          sync.Mutex
	entries     []InboxNotification
	preferences map[string]NotificationPreferences
	nextID      int
	err         error
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{preferences: make(map[string]NotificationPreferences)}
}

func (s *notificationStoreStub) inbox(recipient string) []InboxNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InboxNotification
	for _, entry := range s.entries {
		if entry.Recipient == recipient {
			out = append(out, entry)
		}
	}
	return out
}

func (s *notificationStoreStub) CreateNotification(ctx context.Context, notification InboxNotification) (InboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return InboxNotification{}, s.err
	}
	s.nextID++
	notification.ID = fmt.Sprintf("note-%d", s.nextID)
	s.entries = append(s.entries, notification)
	return notification, nil
}

func (s *notificationStoreStub) ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]InboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []InboxNotification
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.Recipient != recipient || (unreadOnly && entry.ReadAt != nil) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *notificationStoreStub) CountUnreadNotifications(ctx context.Context, recipient string) (int, error) {
	unread, err := s.ListNotifications(ctx, recipient, true, 0)
	return len(unread), err
}

func (s *notificationStoreStub) SetNotificationRead(ctx context.Context, recipient, id string, readAt *time.Time) (InboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return InboxNotification{}, s.err
	}
	for i, entry := range s.entries {
		if entry.ID == id && entry.Recipient == recipient {
			s.entries[i].ReadAt = readAt
			return s.entries[i], nil
		}
	}
	return InboxNotification{}, persistence.ErrNotFound
}

func (s *notificationStoreStub) DeleteNotification(ctx context.Context, recipient, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for i, entry := range s.entries {
		if entry.ID == id && entry.Recipient == recipient {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *notificationStoreStub) DeleteNotifications(ctx context.Context, recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	kept := s.entries[:0]
	removed := 0
	for _, entry := range s.entries {
		if entry.Recipient == recipient {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return removed, nil
}

func (s *notificationStoreStub) GetNotificationPreferences(ctx context.Context, recipient string) (NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return NotificationPreferences{}, s.err
	}
	preferences, ok := s.preferences[recipient]
	if !ok {
		return NotificationPreferences{}, persistence.ErrNotFound
	}
	return preferences, nil
}

func (s *notificationStoreStub) SaveNotificationPreferences(ctx context.Context, recipient string, preferences NotificationPreferences) (NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return NotificationPreferences{}, s.err
	}
	s.preferences[recipient] = preferences
	return preferences, nil
}

type moderatorDirectoryStub []string

func (d moderatorDirectoryStub) ListModeratorIDs(ctx context.Context) ([]string, error) {
	return append([]string(nil), d...), nil
}
