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

const eventColumns = `id, title, category, description, event_date, event_time, location,
	organizer_name, organizer_email, organizer_phone, status, rejection_reason,
	attendee_count, manage_token, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateEvent inserts an event, assigning a UUID when no ID is supplied
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = "pending"
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	query := `INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			event.ID,
			event.Title,
			event.Category,
			event.Description,
			event.Date,
			event.Time,
			event.Location,
			event.OrganizerName,
			event.OrganizerEmail,
			event.OrganizerPhone,
			event.Status,
			nullString(event.RejectionReason),
			event.AttendeeCount,
			strings.TrimSpace(event.ManageToken),
			formatTime(event.CreatedAt),
			formatTime(event.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.Event{}, fmt.Errorf("insert event: %w", err)
	}

	return r.GetEvent(ctx, event.ID)
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if strings.TrimSpace(id) == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// GetEventByManageToken retrieves the event an organizer token was issued for
func (r *EventRepository) GetEventByManageToken(ctx context.Context, token string) (persistence.Event, error) {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE manage_token = ?`, normalized)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// ListEvents returns events matching filter in creation order
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

// UpdateEvent applies the non-nil fields of update and returns the stored row
func (r *EventRepository) UpdateEvent(ctx context.Context, id string, update persistence.EventUpdate) (persistence.Event, error) {
	if strings.TrimSpace(id) == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	if update.AttendeeCount != nil && *update.AttendeeCount < 0 {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(updatedAt)}
	if details := update.Details; details != nil {
		if strings.TrimSpace(details.Title) == "" {
			return persistence.Event{}, persistence.ErrConstraintViolation
		}
		sets = append(sets,
			"title = ?", "category = ?", "description = ?", "event_date = ?", "event_time = ?",
			"location = ?", "organizer_name = ?", "organizer_email = ?", "organizer_phone = ?")
		args = append(args,
			details.Title, details.Category, details.Description, details.Date, details.Time,
			details.Location, details.OrganizerName, details.OrganizerEmail, details.OrganizerPhone)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.RejectionReason != nil {
		sets = append(sets, "rejection_reason = ?")
		args = append(args, nullString(update.RejectionReason))
	}
	if update.AttendeeCount != nil {
		sets = append(sets, "attendee_count = ?")
		args = append(args, *update.AttendeeCount)
	}
	args = append(args, id)

	query := `UPDATE events SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, query, args...)
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
		return persistence.Event{}, err
	}

	return r.GetEvent(ctx, id)
}

// DeleteEvent removes an event. Its RSVPs are removed by the foreign key cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM events WHERE id = ?`, id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                persistence.Event
		rejection            sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Category,
		&event.Description,
		&event.Date,
		&event.Time,
		&event.Location,
		&event.OrganizerName,
		&event.OrganizerEmail,
		&event.OrganizerPhone,
		&event.Status,
		&rejection,
		&event.AttendeeCount,
		&event.ManageToken,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, err
	}

	if rejection.Valid {
		reason := rejection.String
		event.RejectionReason = &reason
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return event, nil
}

func nullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
