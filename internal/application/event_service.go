package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/example/community-events/internal/catalog"
)

// EventStore captures the persistence operations needed for events.
type EventStore interface {
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEventByManageToken(ctx context.Context, token string) (Event, error)
}

// EventService orchestrates submission, listing, and moderation of events.
type EventService struct {
	events   EventStore
	rsvps    RSVPStore
	engine   *catalog.Engine
	inbox    InboxPoster
	newToken func() (string, error)
	now      func() time.Time
	logger   *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(events EventStore, rsvps RSVPStore, engine *catalog.Engine, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, rsvps, engine, now, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
func NewEventServiceWithLogger(events EventStore, rsvps RSVPStore, engine *catalog.Engine, now func() time.Time, logger *slog.Logger) *EventService {
	if engine == nil {
		engine = catalog.NewEngine(nil, language.Und)
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:   events,
		rsvps:    rsvps,
		engine:   engine,
		newToken: newRandomToken,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// SetInbox routes submission, moderation and edit notices to in-app inboxes.
func (s *EventService) SetInbox(inbox InboxPoster) {
	if s != nil {
		s.inbox = inbox
	}
}

// SetTokenGenerator replaces the source of organizer manage tokens.
func (s *EventService) SetTokenGenerator(generate func() (string, error)) {
	if s != nil && generate != nil {
		s.newToken = generate
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

type eventRules struct {
	Title          string `field:"title" validate:"required,max=200"`
	Category       string `field:"category" validate:"required,max=60"`
	Description    string `field:"description" validate:"required,max=5000"`
	Date           string `field:"date" validate:"required,datetime=2006-01-02"`
	Time           string `field:"time" validate:"omitempty,datetime=15:04"`
	Location       string `field:"location" validate:"required,max=300"`
	OrganizerName  string `field:"organizer_name" validate:"required,max=200"`
	OrganizerEmail string `field:"organizer_email" validate:"required,email"`
	OrganizerPhone string `field:"organizer_phone" validate:"omitempty,max=40"`
}

// SubmitEvent validates a new event and stores it awaiting moderation.
func (s *EventService) SubmitEvent(ctx context.Context, input EventInput) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "SubmitEvent", "category", strings.TrimSpace(input.Category))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event submitted")
	}()

	rules := newEventRules(input)
	if vErr := validateStruct(rules); vErr.HasErrors() {
		err = vErr
		return
	}

	var token string
	if token, err = s.newToken(); err != nil {
		return
	}
	if token == "" {
		err = errTokenUnavailable
		return
	}

	now := s.now()
	details := rules.details()
	event = Event{
		Title:       details.Title,
		Category:    details.Category,
		Description: details.Description,
		Date:        details.Date,
		Time:        details.Time,
		Location:    details.Location,
		Organizer:   details.Organizer,
		Status:      EventStatusPending,
		ManageToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event, err = s.events.CreateEvent(ctx, event)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	postModeratorInbox(ctx, s.inbox, logger, InboxMessage{
		Kind:       NotificationEventSubmitted,
		EventID:    event.ID,
		EventTitle: event.Title,
		Title:      "New event awaiting review",
		Message:    fmt.Sprintf("%s submitted %q for review.", event.Organizer.Name, event.Title),
	})
	return
}

func newEventRules(input EventInput) eventRules {
	return eventRules{
		Title:          strings.TrimSpace(input.Title),
		Category:       strings.TrimSpace(input.Category),
		Description:    strings.TrimSpace(input.Description),
		Date:           strings.TrimSpace(input.Date),
		Time:           strings.TrimSpace(input.Time),
		Location:       strings.TrimSpace(input.Location),
		OrganizerName:  strings.TrimSpace(input.OrganizerName),
		OrganizerEmail: normalizeEmail(input.OrganizerEmail),
		OrganizerPhone: strings.TrimSpace(input.OrganizerPhone),
	}
}

func (r eventRules) details() EventDetails {
	return EventDetails{
		Title:       r.Title,
		Category:    r.Category,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		Organizer: Organizer{
			Name:  r.OrganizerName,
			Email: r.OrganizerEmail,
			Phone: r.OrganizerPhone,
		},
	}
}

// UpdateEvent replaces the details of an event. Moderators may edit any
// event and organizers only the one their manage token belongs to. The
// moderation status is left as it is; each side's edit is reported to the
// other side's inbox.
func (s *EventService) UpdateEvent(ctx context.Context, principal Principal, id string, input EventInput) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	id = strings.TrimSpace(id)
	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", principal.ModeratorID,
		"event_id", id,
		"by_moderator", principal.IsModerator,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if !principal.CanManageEvent(id) {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	rules := newEventRules(input)
	if vErr := validateStruct(rules); vErr.HasErrors() {
		err = vErr
		return
	}

	var current Event
	current, err = s.events.GetEvent(ctx, id)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	details := rules.details()
	event, err = s.events.UpdateEvent(ctx, current.ID, EventPatch{Details: &details, UpdatedAt: s.now()})
	if err != nil {
		err = mapStoreError(err)
		return
	}

	message := InboxMessage{Kind: NotificationEventUpdated, EventID: event.ID, EventTitle: event.Title}
	if principal.IsModerator {
		message.Title = "Your event was edited"
		message.Message = fmt.Sprintf("A moderator updated the details of %q.", event.Title)
		postInbox(ctx, s.inbox, logger, EventRecipient(event.ID), message)
		return
	}
	message.Title = "Event edited by its organizer"
	message.Message = fmt.Sprintf("%q was edited while %s.", event.Title, event.Status)
	postModeratorInbox(ctx, s.inbox, logger, message)
	return
}

// AuthenticateOrganizer resolves a manage token to the organizer principal of
// the event it was issued for.
func (s *EventService) AuthenticateOrganizer(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Principal{}, fmt.Errorf("event store not configured")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}

	event, err := s.events.GetEventByManageToken(ctx, token)
	if err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		s.loggerWith(ctx, "AuthenticateOrganizer").ErrorContext(ctx, "failed to resolve manage token", "error", err, "error_kind", ErrorKind(err))
		return Principal{}, err
	}
	return Principal{Email: event.Organizer.Email, EventID: event.ID}, nil
}

// GetPublicEvent returns an approved event. Events still under review are
// reported as not found.
func (s *EventService) GetPublicEvent(ctx context.Context, id string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event store not configured")
	}

	event, err := s.events.GetEvent(ctx, strings.TrimSpace(id))
	if err != nil {
		err = mapStoreError(err)
		if !errors.Is(err, ErrNotFound) {
			s.loggerWith(ctx, "GetPublicEvent", "event_id", id).ErrorContext(ctx, "failed to load event", "error", err, "error_kind", ErrorKind(err))
		}
		return Event{}, err
	}
	if event.Status != EventStatusApproved {
		return Event{}, ErrNotFound
	}
	return event, nil
}

// GetEvent returns an event regardless of status to moderators and to the
// event's organizer.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, id string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	id = strings.TrimSpace(id)
	if !principal.CanManageEvent(id) {
		return Event{}, ErrUnauthorized
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event store not configured")
	}

	event, err := s.events.GetEvent(ctx, strings.TrimSpace(id))
	return event, mapStoreError(err)
}

// ListPublicEvents returns approved events narrowed and ordered by filter.
func (s *EventService) ListPublicEvents(ctx context.Context, filter catalog.Filter) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListPublicEvents", "sort", string(filter.Sort))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	events, err = s.query(ctx, EventQuery{Statuses: []EventStatus{EventStatusApproved}}, filter)
	return
}

// BrowsePublicEvents lists approved events like ListPublicEvents and tallies
// categories over the same result with the category axis left out, so every
// category a visitor could pick next keeps its count.
func (s *EventService) BrowsePublicEvents(ctx context.Context, filter catalog.Filter) (listing EventListing, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "BrowsePublicEvents", "sort", string(filter.Sort))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to browse events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(listing.Events)).InfoContext(ctx, "events browsed")
	}()

	var raw []Event
	raw, err = s.events.ListEvents(ctx, EventQuery{Statuses: []EventStatus{EventStatusApproved}})
	if err != nil {
		err = mapStoreError(err)
		return
	}

	listing.Events = s.order(raw, filter)

	facet := filter
	facet.Categories = nil
	entries := make([]catalog.Event, 0, len(raw))
	for _, event := range s.order(raw, facet) {
		entries = append(entries, toCatalogEvent(event))
	}
	listing.Categories = catalog.CategoryCounts(entries)
	return
}

// ListEventsByStatus returns events in the requested moderation state for
// moderators. An empty status lists every event.
func (s *EventService) ListEventsByStatus(ctx context.Context, principal Principal, status EventStatus, filter catalog.Filter) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListEventsByStatus",
		"principal_id", principal.ModeratorID,
		"status", string(status),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events for moderation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "moderation events listed")
	}()

	if !principal.IsModerator {
		err = ErrUnauthorized
		return
	}

	query := EventQuery{}
	if status != "" {
		if !status.Valid() {
			err = newValidationError("status", "status is invalid")
			return
		}
		query.Statuses = []EventStatus{status}
	}

	events, err = s.query(ctx, query, filter)
	return
}

func (s *EventService) query(ctx context.Context, query EventQuery, filter catalog.Filter) ([]Event, error) {
	if s.events == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	raw, err := s.events.ListEvents(ctx, query)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return s.order(raw, filter), nil
}

func (s *EventService) order(raw []Event, filter catalog.Filter) []Event {
	byID := make(map[string]Event, len(raw))
	entries := make([]catalog.Event, 0, len(raw))
	for _, event := range raw {
		byID[event.ID] = event
		entries = append(entries, toCatalogEvent(event))
	}

	ordered := s.engine.Apply(entries, filter)
	events := make([]Event, 0, len(ordered))
	for _, entry := range ordered {
		events = append(events, byID[entry.ID])
	}
	return events
}

// ApproveEvent publishes an event to the public listing.
func (s *EventService) ApproveEvent(ctx context.Context, principal Principal, id string) (Event, error) {
	return s.transition(ctx, principal, id, EventStatusApproved, "")
}

// RejectEvent hides an event from the public listing, recording an optional reason.
func (s *EventService) RejectEvent(ctx context.Context, principal Principal, id, reason string) (Event, error) {
	return s.transition(ctx, principal, id, EventStatusRejected, reason)
}

func (s *EventService) transition(ctx context.Context, principal Principal, id string, next EventStatus, reason string) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "TransitionEvent",
		"principal_id", principal.ModeratorID,
		"event_id", id,
		"target_status", string(next),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event status updated")
	}()

	if !principal.IsModerator {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	var current Event
	current, err = s.events.GetEvent(ctx, strings.TrimSpace(id))
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if !current.Status.CanTransitionTo(next) {
		err = fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, next)
		return
	}

	status := next
	trimmedReason := strings.TrimSpace(reason)
	patch := EventPatch{Status: &status, RejectionReason: &trimmedReason, UpdatedAt: s.now()}

	event, err = s.events.UpdateEvent(ctx, current.ID, patch)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	message := InboxMessage{Kind: NotificationEventApproved, EventID: event.ID, EventTitle: event.Title}
	if next == EventStatusApproved {
		message.Title = "Your event was approved"
		message.Message = fmt.Sprintf("%q is now listed publicly.", event.Title)
	} else {
		message.Kind = NotificationEventRejected
		message.Title = "Your event was rejected"
		message.Message = fmt.Sprintf("%q was not approved.", event.Title)
		if trimmedReason != "" {
			message.Message += " Reason: " + trimmedReason
		}
	}
	postInbox(ctx, s.inbox, logger, EventRecipient(event.ID), message)
	return
}

// DeleteEvent permanently removes an event together with its RSVPs.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if !principal.IsModerator {
		return ErrUnauthorized
	}
	if s.events == nil {
		return fmt.Errorf("event store not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.ModeratorID,
		"event_id", id,
	)

	if err := s.events.DeleteEvent(ctx, strings.TrimSpace(id)); err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "event deleted")
	return nil
}

// DashboardStats summarises event and RSVP totals for moderators.
func (s *EventService) DashboardStats(ctx context.Context, principal Principal) (stats DashboardStats, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DashboardStats", "principal_id", principal.ModeratorID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute dashboard stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("total_events", stats.TotalEvents, "total_rsvps", stats.TotalRSVPs).InfoContext(ctx, "dashboard stats computed")
	}()

	if !principal.IsModerator {
		err = ErrUnauthorized
		return
	}
	if s.events == nil || s.rsvps == nil {
		err = fmt.Errorf("stores not configured")
		return
	}

	var events []Event
	events, err = s.events.ListEvents(ctx, EventQuery{})
	if err != nil {
		err = mapStoreError(err)
		return
	}

	entries := make([]catalog.Event, 0, len(events))
	stats.TotalEvents = len(events)
	for _, event := range events {
		switch event.Status {
		case EventStatusPending:
			stats.PendingEvents++
		case EventStatusApproved:
			stats.ApprovedEvents++
		case EventStatusRejected:
			stats.RejectedEvents++
		}
		entries = append(entries, toCatalogEvent(event))
	}
	stats.Categories = catalog.CategoryCounts(entries)

	stats.TotalRSVPs, err = s.rsvps.CountRSVPs(ctx)
	err = mapStoreError(err)
	return
}

func toCatalogEvent(event Event) catalog.Event {
	return catalog.Event{
		ID:            event.ID,
		Title:         event.Title,
		Category:      event.Category,
		Description:   event.Description,
		Location:      event.Location,
		Date:          event.Date,
		Time:          event.Time,
		Status:        string(event.Status),
		AttendeeCount: event.AttendeeCount,
		CreatedAt:     event.CreatedAt,
	}
}
