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

const rsvpColumns = `id, event_id, name, email, phone, user_id, status, created_at`

// RSVPRepository implements persistence.RSVPRepository using SQLite. The
// UNIQUE (event_id, email) constraint rejects a second RSVP from the same
// attendee even when two requests race past the application check.
type RSVPRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRSVPRepository creates a new SQLite RSVP repository
func NewRSVPRepository(pool *ConnectionPool) *RSVPRepository {
	return &RSVPRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateRSVP inserts an RSVP. A repeated (event, email) pair yields persistence.ErrDuplicate
// and an unknown event yields persistence.ErrConstraintViolation.
func (r *RSVPRepository) CreateRSVP(ctx context.Context, rsvp persistence.RSVP) (persistence.RSVP, error) {
	rsvp.Email = normalizeEmail(rsvp.Email)
	if rsvp.EventID == "" || rsvp.Email == "" {
		return persistence.RSVP{}, persistence.ErrConstraintViolation
	}
	if rsvp.ID == "" {
		rsvp.ID = uuid.NewString()
	}
	if rsvp.CreatedAt.IsZero() {
		rsvp.CreatedAt = time.Now()
	}
	rsvp.CreatedAt = rsvp.CreatedAt.UTC()

	query := `INSERT INTO rsvps (` + rsvpColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			rsvp.ID,
			rsvp.EventID,
			rsvp.Name,
			rsvp.Email,
			rsvp.Phone,
			rsvp.UserID,
			rsvp.Status,
			formatTime(rsvp.CreatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.RSVP{}, fmt.Errorf("insert rsvp: %w", err)
	}
	return rsvp, nil
}

// FindRSVPByEventAndEmail returns the RSVP an email made for an event
func (r *RSVPRepository) FindRSVPByEventAndEmail(ctx context.Context, eventID, email string) (persistence.RSVP, error) {
	row := r.helper.QueryRow(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE event_id = ? AND email = ?`,
		eventID, normalizeEmail(email))
	rsvp, err := scanRSVP(row)
	if err != nil {
		return persistence.RSVP{}, r.mapper.MapError(err)
	}
	return rsvp, nil
}

// ListRSVPsByEvent returns an event's RSVPs in submission order
func (r *RSVPRepository) ListRSVPsByEvent(ctx context.Context, eventID string) ([]persistence.RSVP, error) {
	return r.list(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE event_id = ? ORDER BY created_at ASC, rowid ASC`, eventID)
}

// ListRSVPsByEmail returns every RSVP made with an attendee email
func (r *RSVPRepository) ListRSVPsByEmail(ctx context.Context, email string) ([]persistence.RSVP, error) {
	return r.list(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE email = ? ORDER BY created_at ASC, rowid ASC`, normalizeEmail(email))
}

// ListRSVPs returns every stored RSVP
func (r *RSVPRepository) ListRSVPs(ctx context.Context) ([]persistence.RSVP, error) {
	return r.list(ctx, `SELECT `+rsvpColumns+` FROM rsvps ORDER BY created_at ASC, rowid ASC`)
}

// CountRSVPs returns the number of stored RSVPs
func (r *RSVPRepository) CountRSVPs(ctx context.Context) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM rsvps`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// DeleteRSVP removes an RSVP by ID
func (r *RSVPRepository) DeleteRSVP(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM rsvps WHERE id = ?`, id)
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

func (r *RSVPRepository) list(ctx context.Context, query string, args ...any) ([]persistence.RSVP, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rsvps []persistence.RSVP
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rsvps = append(rsvps, rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rsvps, nil
}

func scanRSVP(row rowScanner) (persistence.RSVP, error) {
	var (
		rsvp      persistence.RSVP
		createdAt string
	)
	err := row.Scan(
		&rsvp.ID,
		&rsvp.EventID,
		&rsvp.Name,
		&rsvp.Email,
		&rsvp.Phone,
		&rsvp.UserID,
		&rsvp.Status,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.RSVP{}, persistence.ErrNotFound
		}
		return persistence.RSVP{}, err
	}
	if rsvp.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RSVP{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return rsvp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
