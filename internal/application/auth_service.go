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

// ModeratorStore exposes moderator account operations required by the auth service.
type ModeratorStore interface {
	CreateModerator(ctx context.Context, credentials ModeratorCredentials) (Moderator, error)
	GetModeratorCredentialsByEmail(ctx context.Context, email string) (ModeratorCredentials, error)
	GetModerator(ctx context.Context, id string) (Moderator, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService signs moderators in and resolves session tokens to principals.
type AuthService struct {
	moderators     ModeratorStore
	sessions       SessionRepository
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	hashParams     Argon2idParams
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(moderators ModeratorStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(moderators, sessions, verify, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(moderators ModeratorStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string {
			token, _ := newRandomToken()
			return token
		}
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		moderators:     moderators,
		sessions:       sessions,
		verifyPassword: verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		hashParams:     DefaultArgon2idParams,
		logger:         defaultLogger(logger),
	}
}

// SetHashParams overrides the argon2id cost used for new moderator passwords.
func (s *AuthService) SetHashParams(params Argon2idParams) {
	if s != nil {
		s.hashParams = params
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

type moderatorRules struct {
	Email       string `field:"email" validate:"required,email"`
	DisplayName string `field:"display_name" validate:"required,max=200"`
	Password    string `field:"password" validate:"required,min=12,max=256"`
}

// RegisterModerator creates a moderator account with a hashed password.
func (s *AuthService) RegisterModerator(ctx context.Context, params RegisterModeratorParams) (moderator Moderator, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.moderators == nil {
		err = fmt.Errorf("moderator store not configured")
		return
	}

	rules := moderatorRules{
		Email:       normalizeEmail(params.Email),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Password:    params.Password,
	}

	logger := s.loggerWith(ctx, "RegisterModerator", "email", rules.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register moderator", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("moderator_id", moderator.ID).InfoContext(ctx, "moderator registered")
	}()

	if vErr := validateStruct(rules); vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = CreatePasswordHash(rules.Password, s.hashParams)
	if err != nil {
		return
	}

	now := s.now()
	moderator, err = s.moderators.CreateModerator(ctx, ModeratorCredentials{
		Moderator: Moderator{
			Email:       rules.Email,
			DisplayName: rules.DisplayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		err = ErrAlreadyExists
		return
	}
	err = mapStoreError(err)
	return
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.moderators == nil {
		err = fmt.Errorf("moderator store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"moderator_id", result.Moderator.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds ModeratorCredentials
	creds, err = s.moderators.GetModeratorCredentialsByEmail(ctx, email)
	if err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if creds.Disabled {
		err = ErrAccountDisabled
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	id := s.tokenGenerator()
	token := s.tokenGenerator()
	if id == "" || token == "" {
		err = errTokenUnavailable
		return
	}

	session := Session{
		ID:          id,
		ModeratorID: creds.Moderator.ID,
		Token:       token,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}

	if s.sessions != nil {
		if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
			err = mapStoreError(err)
			return
		}

		var persisted Session
		persisted, err = s.sessions.CreateSession(ctx, session)
		if err != nil {
			err = mapStoreError(err)
			return
		}
		session = persisted
	}

	result = AuthenticateResult{Moderator: creds.Moderator, Session: session}
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession", "token_provided", true)

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, s.now()); err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies that the provided token corresponds to an active session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}
	if s.moderators == nil {
		err = fmt.Errorf("moderator store not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.ModeratorID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, trimmed)
	if err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var moderator Moderator
	moderator, err = s.moderators.GetModerator(ctx, session.ModeratorID)
	if err != nil {
		if err = mapStoreError(err); errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{ModeratorID: moderator.ID, Email: moderator.Email, IsModerator: true}
	return
}
