package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// NotificationStore captures the persistence operations backing inboxes.
// Every operation is scoped to one recipient.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification InboxNotification) (InboxNotification, error)
	ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]InboxNotification, error)
	CountUnreadNotifications(ctx context.Context, recipient string) (int, error)
	SetNotificationRead(ctx context.Context, recipient, id string, readAt *time.Time) (InboxNotification, error)
	DeleteNotification(ctx context.Context, recipient, id string) error
	DeleteNotifications(ctx context.Context, recipient string) (int, error)
	GetNotificationPreferences(ctx context.Context, recipient string) (NotificationPreferences, error)
	SaveNotificationPreferences(ctx context.Context, recipient string, preferences NotificationPreferences) (NotificationPreferences, error)
}

// ModeratorDirectory lists the moderators who receive review notifications.
type ModeratorDirectory interface {
	ListModeratorIDs(ctx context.Context) ([]string, error)
}

// InboxPoster delivers inbox entries on behalf of other services.
type InboxPoster interface {
	Deliver(ctx context.Context, recipient string, message InboxMessage) (bool, error)
	DeliverToModerators(ctx context.Context, message InboxMessage) (int, error)
}

const inboxPageSize = 50

// InboxService stores in-app notifications and lets their owners read and
// manage them.
type InboxService struct {
	store      NotificationStore
	moderators ModeratorDirectory
	now        func() time.Time
	logger     *slog.Logger
}

// NewInboxService constructs an inbox service with the provided dependencies.
func NewInboxService(store NotificationStore, moderators ModeratorDirectory, now func() time.Time) *InboxService {
	return NewInboxServiceWithLogger(store, moderators, now, nil)
}

// NewInboxServiceWithLogger constructs an inbox service with a specified logger.
func NewInboxServiceWithLogger(store NotificationStore, moderators ModeratorDirectory, now func() time.Time, logger *slog.Logger) *InboxService {
	if now == nil {
		now = time.Now
	}
	return &InboxService{store: store, moderators: moderators, now: now, logger: defaultLogger(logger)}
}

func (s *InboxService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InboxService", operation, attrs...)
}

// Deliver stores message in recipient's inbox unless the recipient's
// preferences turn that kind off. It reports whether an entry was stored.
func (s *InboxService) Deliver(ctx context.Context, recipient string, message InboxMessage) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("InboxService is nil")
	}
	if s.store == nil {
		return false, fmt.Errorf("notification store not configured")
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return false, newValidationError("recipient", "recipient is required")
	}
	if !message.Kind.Valid() {
		return false, newValidationError("kind", "kind is invalid")
	}
	if strings.TrimSpace(message.Title) == "" {
		return false, newValidationError("title", "title is required")
	}

	preferences, err := s.preferences(ctx, recipient)
	if err != nil {
		return false, err
	}
	if !preferences.Accepts(message.Kind) {
		return false, nil
	}

	_, err = s.store.CreateNotification(ctx, InboxNotification{
		Recipient:  recipient,
		Kind:       message.Kind,
		EventID:    message.EventID,
		EventTitle: message.EventTitle,
		Title:      strings.TrimSpace(message.Title),
		Message:    strings.TrimSpace(message.Message),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return false, mapStoreError(err)
	}
	return true, nil
}

// DeliverToModerators fans message out to every moderator inbox and returns
// how many entries were stored. Failures for single inboxes do not stop the
// fan-out and are returned joined.
func (s *InboxService) DeliverToModerators(ctx context.Context, message InboxMessage) (delivered int, err error) {
	if s == nil {
		return 0, fmt.Errorf("InboxService is nil")
	}
	if s.moderators == nil {
		return 0, fmt.Errorf("moderator directory not configured")
	}

	ids, err := s.moderators.ListModeratorIDs(ctx)
	if err != nil {
		return 0, mapStoreError(err)
	}

	var errs []error
	for _, id := range ids {
		stored, dErr := s.Deliver(ctx, ModeratorRecipient(id), message)
		if dErr != nil {
			errs = append(errs, fmt.Errorf("moderator %s: %w", id, dErr))
			continue
		}
		if stored {
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

// List returns the newest entries of the caller's inbox.
func (s *InboxService) List(ctx context.Context, principal Principal, unreadOnly bool) (notifications []InboxNotification, err error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return nil, err
	}

	notifications, err = s.store.ListNotifications(ctx, recipient, unreadOnly, inboxPageSize)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "List", "recipient", recipient).ErrorContext(ctx, "failed to list notifications", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return notifications, nil
}

// UnreadCount returns how many entries in the caller's inbox are unread.
func (s *InboxService) UnreadCount(ctx context.Context, principal Principal) (int, error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return 0, err
	}
	count, err := s.store.CountUnreadNotifications(ctx, recipient)
	return count, mapStoreError(err)
}

// MarkRead flags one of the caller's entries as read.
func (s *InboxService) MarkRead(ctx context.Context, principal Principal, id string) (InboxNotification, error) {
	if s == nil {
		return InboxNotification{}, fmt.Errorf("InboxService is nil")
	}
	now := s.now()
	return s.setRead(ctx, principal, id, &now)
}

// MarkUnread clears the read flag on one of the caller's entries.
func (s *InboxService) MarkUnread(ctx context.Context, principal Principal, id string) (InboxNotification, error) {
	return s.setRead(ctx, principal, id, nil)
}

func (s *InboxService) setRead(ctx context.Context, principal Principal, id string, readAt *time.Time) (InboxNotification, error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return InboxNotification{}, err
	}
	notification, err := s.store.SetNotificationRead(ctx, recipient, strings.TrimSpace(id), readAt)
	return notification, mapStoreError(err)
}

// Delete removes one of the caller's entries.
func (s *InboxService) Delete(ctx context.Context, principal Principal, id string) error {
	recipient, err := s.recipient(principal)
	if err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "Delete", "recipient", recipient, "notification_id", id)
	if err := s.store.DeleteNotification(ctx, recipient, strings.TrimSpace(id)); err != nil {
		err = mapStoreError(err)
		if !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to delete notification", "error", err, "error_kind", ErrorKind(err))
		}
		return err
	}
	logger.InfoContext(ctx, "notification deleted")
	return nil
}

// Clear empties the caller's inbox and returns how many entries were removed.
func (s *InboxService) Clear(ctx context.Context, principal Principal) (removed int, err error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return 0, err
	}

	logger := s.loggerWith(ctx, "Clear", "recipient", recipient)
	removed, err = s.store.DeleteNotifications(ctx, recipient)
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to clear notifications", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.With("removed", removed).InfoContext(ctx, "notifications cleared")
	return removed, nil
}

// Preferences returns the caller's notification preferences. Callers who
// never saved any get the defaults.
func (s *InboxService) Preferences(ctx context.Context, principal Principal) (NotificationPreferences, error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return NotificationPreferences{}, err
	}
	return s.preferences(ctx, recipient)
}

// UpdatePreferences replaces the caller's notification preferences.
func (s *InboxService) UpdatePreferences(ctx context.Context, principal Principal, preferences NotificationPreferences) (NotificationPreferences, error) {
	recipient, err := s.recipient(principal)
	if err != nil {
		return NotificationPreferences{}, err
	}

	seen := make(map[NotificationKind]bool, len(preferences.DisabledKinds))
	kinds := make([]NotificationKind, 0, len(preferences.DisabledKinds))
	for _, kind := range preferences.DisabledKinds {
		kind = NotificationKind(strings.TrimSpace(string(kind)))
		if !kind.Valid() {
			return NotificationPreferences{}, newValidationError("disabled_kinds", fmt.Sprintf("unknown notification kind %q", kind))
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	preferences.DisabledKinds = kinds
	preferences.UpdatedAt = s.now()

	saved, err := s.store.SaveNotificationPreferences(ctx, recipient, preferences)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "UpdatePreferences", "recipient", recipient).ErrorContext(ctx, "failed to save preferences", "error", err, "error_kind", ErrorKind(err))
		return NotificationPreferences{}, err
	}
	return saved, nil
}

func (s *InboxService) preferences(ctx context.Context, recipient string) (NotificationPreferences, error) {
	preferences, err := s.store.GetNotificationPreferences(ctx, recipient)
	if err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			return DefaultNotificationPreferences(), nil
		}
		return NotificationPreferences{}, err
	}
	return preferences, nil
}

func (s *InboxService) recipient(principal Principal) (string, error) {
	if s == nil {
		return "", fmt.Errorf("InboxService is nil")
	}
	recipient := principal.InboxRecipient()
	if recipient == "" {
		return "", ErrUnauthorized
	}
	if s.store == nil {
		return "", fmt.Errorf("notification store not configured")
	}
	return recipient, nil
}

// postInbox delivers an entry on behalf of another service. Failures are
// logged and never fail the calling operation.
func postInbox(ctx context.Context, inbox InboxPoster, logger *slog.Logger, recipient string, message InboxMessage) {
	if inbox == nil {
		return
	}
	if _, err := inbox.Deliver(ctx, recipient, message); err != nil {
		logger.WarnContext(ctx, "inbox notification failed", "error", err, "kind", string(message.Kind), "recipient", recipient)
	}
}

func postModeratorInbox(ctx context.Context, inbox InboxPoster, logger *slog.Logger, message InboxMessage) {
	if inbox == nil {
		return
	}
	if _, err := inbox.DeliverToModerators(ctx, message); err != nil {
		logger.WarnContext(ctx, "moderator inbox notification failed", "error", err, "kind", string(message.Kind))
	}
}
