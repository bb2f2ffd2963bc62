package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/community-events/internal/persistence"
)

const moderatorColumns = `id, email, display_name, password_hash, disabled, created_at, updated_at`

// ModeratorRepository implements persistence.ModeratorRepository using SQLite
type ModeratorRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewModeratorRepository creates a new SQLite moderator repository
func NewModeratorRepository(pool *ConnectionPool) *ModeratorRepository {
	return &ModeratorRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateModerator inserts a moderator account. Emails are unique regardless of case.
func (r *ModeratorRepository) CreateModerator(ctx context.Context, moderator persistence.Moderator) (persistence.Moderator, error) {
	if moderator.PasswordHash == "" {
		return persistence.Moderator{}, persistence.ErrConstraintViolation
	}
	if moderator.ID == "" {
		moderator.ID = uuid.NewString()
	}
	moderator.Email = normalizeEmail(moderator.Email)

	now := time.Now().UTC()
	if moderator.CreatedAt.IsZero() {
		moderator.CreatedAt = now
	}
	if moderator.UpdatedAt.IsZero() {
		moderator.UpdatedAt = moderator.CreatedAt
	}

	_, err := r.helper.Exec(ctx, `INSERT INTO moderators (`+moderatorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		moderator.ID,
		moderator.Email,
		moderator.DisplayName,
		moderator.PasswordHash,
		moderator.Disabled,
		formatTime(moderator.CreatedAt),
		formatTime(moderator.UpdatedAt),
	)
	if err != nil {
		return persistence.Moderator{}, fmt.Errorf("insert moderator: %w", r.mapper.MapError(err))
	}

	moderator.CreatedAt = moderator.CreatedAt.UTC()
	moderator.UpdatedAt = moderator.UpdatedAt.UTC()
	return moderator, nil
}

// GetModerator retrieves a moderator by ID
func (r *ModeratorRepository) GetModerator(ctx context.Context, id string) (persistence.Moderator, error) {
	if id == "" {
		return persistence.Moderator{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+moderatorColumns+` FROM moderators WHERE id = ?`, id)
	moderator, err := scanModerator(row)
	if err != nil {
		return persistence.Moderator{}, r.mapper.MapError(err)
	}
	return moderator, nil
}

// GetModeratorByEmail retrieves a moderator by email, ignoring case
func (r *ModeratorRepository) GetModeratorByEmail(ctx context.Context, email string) (persistence.Moderator, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.Moderator{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+moderatorColumns+` FROM moderators WHERE email = ?`, normalized)
	moderator, err := scanModerator(row)
	if err != nil {
		return persistence.Moderator{}, r.mapper.MapError(err)
	}
	return moderator, nil
}

// ListModerators returns every moderator account ordered by creation time
func (r *ModeratorRepository) ListModerators(ctx context.Context) ([]persistence.Moderator, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+moderatorColumns+` FROM moderators ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var moderators []persistence.Moderator
	for rows.Next() {
		moderator, err := scanModerator(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		moderators = append(moderators, moderator)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return moderators, nil
}

func scanModerator(row rowScanner) (persistence.Moderator, error) {
	var (
		moderator            persistence.Moderator
		createdAt, updatedAt string
	)
	err := row.Scan(
		&moderator.ID,
		&moderator.Email,
		&moderator.DisplayName,
		&moderator.PasswordHash,
		&moderator.Disabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Moderator{}, persistence.ErrNotFound
		}
		return persistence.Moderator{}, err
	}
	if moderator.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Moderator{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if moderator.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Moderator{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return moderator, nil
}
