package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/community-events/internal/persistence"
)

// RSVPStore captures the persistence operations needed for RSVPs.
type RSVPStore interface {
	ListRSVPsByEvent(ctx context.Context, eventID string) ([]RSVP, error)
	FindRSVPByEventAndEmail(ctx context.Context, eventID, email string) (RSVP, error)
	CreateRSVP(ctx context.Context, rsvp RSVP) (RSVP, error)
	DeleteRSVP(ctx context.Context, id string) error
	ListRSVPs(ctx context.Context) ([]RSVP, error)
	ListRSVPsByEmail(ctx context.Context, email string) ([]RSVP, error)
	CountRSVPs(ctx context.Context) (int, error)
}

// Notifier delivers RSVP notifications to event organizers.
type Notifier interface {
	Notify(ctx context.Context, organizerEmail string, notification RSVPNotification) error
}

const (
	defaultNotifyTimeout = 5 * time.Second
	rsvpStatusAttending  = "attending"
	guestUserID          = "guest"
)

// RSVPService admits RSVPs and keeps each event's attendee count in step with
// the stored RSVP records.
type RSVPService struct {
	events        EventStore
	rsvps         RSVPStore
	notifier      Notifier
	inbox         InboxPoster
	now           func() time.Time
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// NewRSVPService constructs an RSVP service with the provided dependencies.
// A nil notifier disables organizer notifications.
func NewRSVPService(events EventStore, rsvps RSVPStore, notifier Notifier, now func() time.Time) *RSVPService {
	return NewRSVPServiceWithLogger(events, rsvps, notifier, now, nil)
}

// NewRSVPServiceWithLogger constructs an RSVP service with a specified logger.
func NewRSVPServiceWithLogger(events EventStore, rsvps RSVPStore, notifier Notifier, now func() time.Time, logger *slog.Logger) *RSVPService {
	if now == nil {
		now = time.Now
	}
	return &RSVPService{
		events:        events,
		rsvps:         rsvps,
		notifier:      notifier,
		now:           now,
		notifyTimeout: defaultNotifyTimeout,
		logger:        defaultLogger(logger),
	}
}

// SetNotifyTimeout bounds how long a single organizer notification may take.
func (s *RSVPService) SetNotifyTimeout(timeout time.Duration) {
	if s != nil && timeout > 0 {
		s.notifyTimeout = timeout
	}
}

// SetInbox posts a notice to the organizer's inbox for every new RSVP.
func (s *RSVPService) SetInbox(inbox InboxPoster) {
	if s != nil {
		s.inbox = inbox
	}
}

func (s *RSVPService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RSVPService", operation, attrs...)
}

type rsvpRules struct {
	EventID string `field:"event_id" validate:"required"`
	Name    string `field:"name" validate:"required,max=200"`
	Email   string `field:"email" validate:"required,email"`
	Phone   string `field:"phone" validate:"omitempty,max=40"`
}

// SubmitRSVP records an attendee's RSVP for an approved event.
//
// A second RSVP for the same event and email returns ErrDuplicateRSVP without
// writing anything. After a successful insert the event's attendee count is
// recomputed from the stored RSVPs. Once the RSVP is stored the call succeeds:
// a failed count refresh is reported in CountErr and a failed organizer
// notification in NotificationErr.
func (s *RSVPService) SubmitRSVP(ctx context.Context, params SubmitRSVPParams) (result RSVPResult, err error) {
	if s == nil {
		err = fmt.Errorf("RSVPService is nil")
		return
	}

	rules := rsvpRules{
		EventID: strings.TrimSpace(params.EventID),
		Name:    strings.TrimSpace(params.Attendee.Name),
		Email:   normalizeEmail(params.Attendee.Email),
		Phone:   strings.TrimSpace(params.Attendee.Phone),
	}

	logger := s.loggerWith(ctx, "SubmitRSVP", "event_id", rules.EventID)
	defer func() {
		switch {
		case errors.Is(err, ErrDuplicateRSVP):
			logger.InfoContext(ctx, "duplicate rsvp rejected", "error_kind", ErrorKind(err))
		case err != nil:
			logger.ErrorContext(ctx, "failed to submit rsvp", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.With(
				"rsvp_id", result.RSVP.ID,
				"attendee_count", result.AttendeeCount,
				"count_stale", result.CountErr != nil,
				"notified", result.Notified,
			).InfoContext(ctx, "rsvp submitted")
		}
	}()

	if vErr := validateStruct(rules); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.events == nil || s.rsvps == nil {
		err = fmt.Errorf("stores not configured")
		return
	}

	var event Event
	event, err = s.events.GetEvent(ctx, rules.EventID)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if event.Status != EventStatusApproved {
		err = newValidationError("event_id", "event is not open for rsvps")
		return
	}

	var existing RSVP
	existing, err = s.rsvps.FindRSVPByEventAndEmail(ctx, rules.EventID, rules.Email)
	switch mapped := mapStoreError(err); {
	case err == nil:
		result, err = s.duplicateResult(ctx, existing)
		return
	case errors.Is(mapped, ErrNotFound):
		err = nil
	default:
		err = mapped
		return
	}

	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = guestUserID
	}

	var created RSVP
	created, err = s.rsvps.CreateRSVP(ctx, RSVP{
		EventID: rules.EventID,
		Attendee: Attendee{
			Name:  rules.Name,
			Email: rules.Email,
			Phone: rules.Phone,
		},
		UserID:    userID,
		Status:    rsvpStatusAttending,
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, ErrAlreadyExists) {
			result, err = s.duplicateResult(ctx, RSVP{EventID: rules.EventID, Attendee: Attendee{Name: rules.Name, Email: rules.Email}})
			return
		}
		err = mapStoreError(err)
		return
	}

	result = RSVPResult{RSVP: created, Message: RSVPConfirmedMessage}
	result.AttendeeCount, result.CountErr = s.recount(ctx, rules.EventID, event.AttendeeCount+1)
	if result.CountErr != nil {
		logger.WarnContext(ctx, "attendee count not refreshed", "error", result.CountErr, "rsvp_id", created.ID)
	}

	result.Notified, result.NotificationErr = s.notifyOrganizer(ctx, event, created)
	postInbox(ctx, s.inbox, logger, EventRecipient(event.ID), InboxMessage{
		Kind:       NotificationRSVPReceived,
		EventID:    event.ID,
		EventTitle: event.Title,
		Title:      "New RSVP",
		Message:    fmt.Sprintf("%s is attending %q.", created.Attendee.Name, event.Title),
	})
	return
}

func (s *RSVPService) duplicateResult(ctx context.Context, existing RSVP) (RSVPResult, error) {
	result := RSVPResult{RSVP: existing, Message: DuplicateRSVPMessage}
	rsvps, err := s.rsvps.ListRSVPsByEvent(ctx, existing.EventID)
	if err != nil {
		return result, mapStoreError(err)
	}
	result.AttendeeCount = len(rsvps)
	return result, ErrDuplicateRSVP
}

func (s *RSVPService) notifyOrganizer(ctx context.Context, event Event, rsvp RSVP) (bool, error) {
	if s.notifier == nil || strings.TrimSpace(event.Organizer.Email) == "" {
		return false, nil
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	notification := newRSVPNotification(event, rsvp)
	if err := s.notifier.Notify(notifyCtx, event.Organizer.Email, notification); err != nil {
		s.loggerWith(ctx, "NotifyOrganizer",
			"event_id", event.ID,
			"rsvp_id", rsvp.ID,
		).WarnContext(ctx, "organizer notification failed", "error", err)
		return false, err
	}
	return true, nil
}

func newRSVPNotification(event Event, rsvp RSVP) RSVPNotification {
	orDefault := func(value, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return value
	}

	eventDate := event.Date
	if strings.TrimSpace(event.Time) != "" && eventDate != "" {
		eventDate = eventDate + " " + event.Time
	}

	return RSVPNotification{
		OrganizerEmail: event.Organizer.Email,
		OrganizerName:  orDefault(event.Organizer.Name, "Organizer"),
		EventID:        event.ID,
		RSVPID:         rsvp.ID,
		EventTitle:     event.Title,
		EventDate:      orDefault(eventDate, "TBA"),
		EventLocation:  orDefault(event.Location, "Not specified"),
		AttendeeName:   rsvp.Attendee.Name,
		AttendeeEmail:  rsvp.Attendee.Email,
		AttendeePhone:  orDefault(rsvp.Attendee.Phone, "Not provided"),
		RSVPDate:       rsvp.CreatedAt.Format("2006-01-02"),
		RSVPTime:       rsvp.CreatedAt.Format("15:04"),
		SubmittedAt:    rsvp.CreatedAt,
	}
}

// recount derives the attendee count from the stored RSVPs and persists it on
// the event. On error the returned count is still the best known value: the
// listed count when only the update failed, otherwise fallback.
func (s *RSVPService) recount(ctx context.Context, eventID string, fallback int) (int, error) {
	rsvps, err := s.rsvps.ListRSVPsByEvent(ctx, eventID)
	if err != nil {
		return fallback, mapStoreError(err)
	}

	count := len(rsvps)
	if _, err := s.events.UpdateEvent(ctx, eventID, EventPatch{AttendeeCount: &count, UpdatedAt: s.now()}); err != nil {
		return count, mapStoreError(err)
	}
	return count, nil
}

// AttendeeCount returns the number of RSVPs stored for an event. A cached
// count that disagrees with the RSVP records is corrected in passing.
func (s *RSVPService) AttendeeCount(ctx context.Context, eventID string) (count int, err error) {
	if s == nil {
		err = fmt.Errorf("RSVPService is nil")
		return
	}
	if s.events == nil || s.rsvps == nil {
		err = fmt.Errorf("stores not configured")
		return
	}

	eventID = strings.TrimSpace(eventID)
	logger := s.loggerWith(ctx, "AttendeeCount", "event_id", eventID)

	var event Event
	event, err = s.events.GetEvent(ctx, eventID)
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to load event", "error", err, "error_kind", ErrorKind(err))
		return
	}

	var rsvps []RSVP
	rsvps, err = s.rsvps.ListRSVPsByEvent(ctx, eventID)
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to list rsvps", "error", err, "error_kind", ErrorKind(err))
		return
	}
	count = len(rsvps)

	if event.AttendeeCount != count {
		healed := count
		if _, uErr := s.events.UpdateEvent(ctx, eventID, EventPatch{AttendeeCount: &healed, UpdatedAt: s.now()}); uErr != nil {
			logger.WarnContext(ctx, "failed to correct cached attendee count", "error", uErr, "cached", event.AttendeeCount, "actual", count)
		} else {
			logger.InfoContext(ctx, "cached attendee count corrected", "cached", event.AttendeeCount, "actual", count)
		}
	}
	return
}

// RemoveRSVP deletes an RSVP belonging to eventID and returns the event's new
// attendee count.
func (s *RSVPService) RemoveRSVP(ctx context.Context, rsvpID, eventID string) (count int, err error) {
	if s == nil {
		err = fmt.Errorf("RSVPService is nil")
		return
	}
	if s.events == nil || s.rsvps == nil {
		err = fmt.Errorf("stores not configured")
		return
	}

	rsvpID = strings.TrimSpace(rsvpID)
	eventID = strings.TrimSpace(eventID)
	logger := s.loggerWith(ctx, "RemoveRSVP", "event_id", eventID, "rsvp_id", rsvpID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to remove rsvp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("attendee_count", count).InfoContext(ctx, "rsvp removed")
	}()

	var rsvps []RSVP
	rsvps, err = s.rsvps.ListRSVPsByEvent(ctx, eventID)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if !containsRSVP(rsvps, rsvpID) {
		err = ErrNotFound
		return
	}

	if err = s.rsvps.DeleteRSVP(ctx, rsvpID); err != nil {
		err = mapStoreError(err)
		return
	}

	var countErr error
	count, countErr = s.recount(ctx, eventID, len(rsvps)-1)
	if countErr != nil {
		logger.WarnContext(ctx, "attendee count not refreshed", "error", countErr)
	}
	return
}

func containsRSVP(rsvps []RSVP, id string) bool {
	for _, rsvp := range rsvps {
		if rsvp.ID == id {
			return true
		}
	}
	return false
}

// ListRSVPs returns the RSVPs of one event ordered by submission time to
// moderators and to the event's organizer.
func (s *RSVPService) ListRSVPs(ctx context.Context, principal Principal, eventID string) ([]RSVP, error) {
	if s == nil {
		return nil, fmt.Errorf("RSVPService is nil")
	}
	eventID = strings.TrimSpace(eventID)
	if !principal.CanManageEvent(eventID) {
		return nil, ErrUnauthorized
	}
	if s.rsvps == nil {
		return nil, fmt.Errorf("rsvp store not configured")
	}

	rsvps, err := s.rsvps.ListRSVPsByEvent(ctx, eventID)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "ListRSVPs", "event_id", eventID).ErrorContext(ctx, "failed to list rsvps", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return rsvps, nil
}

// ListAllRSVPs returns every stored RSVP for the moderation report.
func (s *RSVPService) ListAllRSVPs(ctx context.Context, principal Principal) ([]RSVP, error) {
	if s == nil {
		return nil, fmt.Errorf("RSVPService is nil")
	}
	if !principal.IsModerator {
		return nil, ErrUnauthorized
	}
	if s.rsvps == nil {
		return nil, fmt.Errorf("rsvp store not configured")
	}

	rsvps, err := s.rsvps.ListRSVPs(ctx)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "ListAllRSVPs").ErrorContext(ctx, "failed to list rsvps", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return rsvps, nil
}

// ListRSVPsByEmail returns every RSVP submitted with an attendee email.
// Attendees hold no credential bound to their email, so only moderators may
// run this lookup.
func (s *RSVPService) ListRSVPsByEmail(ctx context.Context, principal Principal, email string) ([]RSVP, error) {
	if s == nil {
		return nil, fmt.Errorf("RSVPService is nil")
	}
	if !principal.IsModerator {
		return nil, ErrUnauthorized
	}
	if s.rsvps == nil {
		return nil, fmt.Errorf("rsvp store not configured")
	}

	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, newValidationError("email", "email is required")
	}

	rsvps, err := s.rsvps.ListRSVPsByEmail(ctx, normalized)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "ListRSVPsByEmail").ErrorContext(ctx, "failed to list rsvps", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return rsvps, nil
}

// ReconcileCounts recomputes the attendee count of every event and returns
// how many cached counts were corrected.
func (s *RSVPService) ReconcileCounts(ctx context.Context) (corrected int, err error) {
	if s == nil {
		err = fmt.Errorf("RSVPService is nil")
		return
	}
	if s.events == nil || s.rsvps == nil {
		err = fmt.Errorf("stores not configured")
		return
	}

	logger := s.loggerWith(ctx, "ReconcileCounts")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "attendee count reconciliation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("corrected", corrected).InfoContext(ctx, "attendee counts reconciled")
	}()

	var events []Event
	events, err = s.events.ListEvents(ctx, EventQuery{})
	if err != nil {
		err = mapStoreError(err)
		return
	}

	for _, event := range events {
		if err = ctx.Err(); err != nil {
			return
		}

		var rsvps []RSVP
		rsvps, err = s.rsvps.ListRSVPsByEvent(ctx, event.ID)
		if err != nil {
			err = mapStoreError(err)
			return
		}
		if len(rsvps) == event.AttendeeCount {
			continue
		}

		count := len(rsvps)
		if _, err = s.events.UpdateEvent(ctx, event.ID, EventPatch{AttendeeCount: &count, UpdatedAt: s.now()}); err != nil {
			err = mapStoreError(err)
			return
		}
		corrected++
	}
	return
}
