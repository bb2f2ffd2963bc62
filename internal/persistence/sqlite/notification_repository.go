package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/community-events/internal/persistence"
)

const notificationColumns = `id, recipient, kind, event_id, event_title, title, message, read_at, created_at`

// NotificationRepository implements persistence.NotificationRepository using SQLite
type NotificationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewNotificationRepository creates a new SQLite notification repository
func NewNotificationRepository(pool *ConnectionPool) *NotificationRepository {
	return &NotificationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateNotification inserts an inbox entry, assigning a UUID when no ID is supplied
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification persistence.Notification) (persistence.Notification, error) {
	notification.Recipient = strings.TrimSpace(notification.Recipient)
	if notification.Recipient == "" || notification.Kind == "" || strings.TrimSpace(notification.Title) == "" {
		return persistence.Notification{}, persistence.ErrConstraintViolation
	}
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	notification.CreatedAt = notification.CreatedAt.UTC()

	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			notification.ID,
			notification.Recipient,
			notification.Kind,
			notification.EventID,
			notification.EventTitle,
			notification.Title,
			notification.Message,
			nullTime(notification.ReadAt),
			formatTime(notification.CreatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return notification, nil
}

// ListNotifications returns a recipient's entries newest first. A positive
// limit caps the result.
func (r *NotificationRepository) ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]persistence.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient = ?`
	args := []any{strings.TrimSpace(recipient)}
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return notifications, nil
}

// CountUnreadNotifications returns how many of a recipient's entries are unread
func (r *NotificationRepository) CountUnreadNotifications(ctx context.Context, recipient string) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient = ? AND read_at IS NULL`,
		strings.TrimSpace(recipient)).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// SetNotificationRead marks an entry read at readAt, or unread when readAt is nil
func (r *NotificationRepository) SetNotificationRead(ctx context.Context, recipient, id string, readAt *time.Time) (persistence.Notification, error) {
	recipient = strings.TrimSpace(recipient)
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx,
			`UPDATE notifications SET read_at = ? WHERE id = ? AND recipient = ?`,
			nullTime(readAt), id, recipient)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return persistence.Notification{}, err
	}

	row := r.helper.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ? AND recipient = ?`, id, recipient)
	notification, err := scanNotification(row)
	if err != nil {
		return persistence.Notification{}, r.mapper.MapError(err)
	}
	return notification, nil
}

// DeleteNotification removes one of a recipient's entries
func (r *NotificationRepository) DeleteNotification(ctx context.Context, recipient, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx,
			`DELETE FROM notifications WHERE id = ? AND recipient = ?`, id, strings.TrimSpace(recipient))
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// DeleteNotifications clears a recipient's inbox and returns how many entries were removed
func (r *NotificationRepository) DeleteNotifications(ctx context.Context, recipient string) (int, error) {
	var removed int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM notifications WHERE recipient = ?`, strings.TrimSpace(recipient))
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// GetNotificationPreferences returns a recipient's saved preferences, or
// persistence.ErrNotFound when none were saved
func (r *NotificationRepository) GetNotificationPreferences(ctx context.Context, recipient string) (persistence.NotificationPreferences, error) {
	var (
		preferences persistence.NotificationPreferences
		disabled    string
		updatedAt   string
	)
	err := r.helper.QueryRow(ctx,
		`SELECT recipient, in_app, disabled_kinds, updated_at FROM notification_preferences WHERE recipient = ?`,
		strings.TrimSpace(recipient)).Scan(&preferences.Recipient, &preferences.InApp, &disabled, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NotificationPreferences{}, persistence.ErrNotFound
		}
		return persistence.NotificationPreferences{}, r.mapper.MapError(err)
	}

	preferences.DisabledKinds = splitKinds(disabled)
	if preferences.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.NotificationPreferences{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return preferences, nil
}

// SaveNotificationPreferences inserts or replaces a recipient's preferences
func (r *NotificationRepository) SaveNotificationPreferences(ctx context.Context, preferences persistence.NotificationPreferences) (persistence.NotificationPreferences, error) {
	preferences.Recipient = strings.TrimSpace(preferences.Recipient)
	if preferences.Recipient == "" {
		return persistence.NotificationPreferences{}, persistence.ErrConstraintViolation
	}
	if preferences.UpdatedAt.IsZero() {
		preferences.UpdatedAt = time.Now()
	}
	preferences.UpdatedAt = preferences.UpdatedAt.UTC()

	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, `
			INSERT INTO notification_preferences (recipient, in_app, disabled_kinds, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(recipient) DO UPDATE SET
				in_app = excluded.in_app,
				disabled_kinds = excluded.disabled_kinds,
				updated_at = excluded.updated_at`,
			preferences.Recipient,
			preferences.InApp,
			strings.Join(preferences.DisabledKinds, ","),
			formatTime(preferences.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.NotificationPreferences{}, fmt.Errorf("save notification preferences: %w", err)
	}
	preferences.DisabledKinds = splitKinds(strings.Join(preferences.DisabledKinds, ","))
	return preferences, nil
}

func splitKinds(value string) []string {
	var kinds []string
	for _, kind := range strings.Split(value, ",") {
		if kind = strings.TrimSpace(kind); kind != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func scanNotification(row rowScanner) (persistence.Notification, error) {
	var (
		notification persistence.Notification
		readAt       sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&notification.ID,
		&notification.Recipient,
		&notification.Kind,
		&notification.EventID,
		&notification.EventTitle,
		&notification.Title,
		&notification.Message,
		&readAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Notification{}, persistence.ErrNotFound
		}
		return persistence.Notification{}, err
	}
	if notification.ReadAt, err = parseTimePtr(readAt); err != nil {
		return persistence.Notification{}, fmt.Errorf("failed to parse read_at: %w", err)
	}
	if notification.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Notification{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return notification, nil
}
