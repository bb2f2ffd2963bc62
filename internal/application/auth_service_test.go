package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/community-events/internal/persistence"
)

func plainVerifier(hash, password string) error {
	if hash != password {
		return ErrInvalidCredentials
	}
	return nil
}

func sequenceTokens(tokens ...string) func() string {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(tokens) == 0 {
			return "fallback"
		}
		token := tokens[0]
		tokens = tokens[1:]
		return token
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		moderators := newModeratorStoreStub(ModeratorCredentials{
			Moderator:    Moderator{ID: "mod-1", Email: "ada@example.com"},
			PasswordHash: "secret",
		})
		repo := newSessionRepositoryStub()
		svc := NewAuthService(moderators, repo, plainVerifier, sequenceTokens("session-id", "session-token"), func() time.Time { return now }, time.Hour)

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: " Ada@Example.com ", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}

		if result.Session.ID != "session-id" || result.Session.Token != "session-token" {
			t.Fatalf("unexpected session identifiers: %#v", result.Session)
		}
		if !result.Session.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected expiry one hour after now, got %s", result.Session.ExpiresAt)
		}
		if result.Moderator.ID != "mod-1" {
			t.Fatalf("expected moderator mod-1, got %q", result.Moderator.ID)
		}
		if len(repo.deleteCalls) != 1 || !repo.deleteCalls[0].Equal(now) {
			t.Fatalf("expected DeleteExpiredSessions to be called with now, got %#v", repo.deleteCalls)
		}
	})

	t.Run("rejects disabled accounts", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod", Email: "mod@example.com"}, PasswordHash: "secret", Disabled: true})
		svc := NewAuthService(moderators, nil, plainVerifier, nil, time.Now, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "mod@example.com", Password: "secret"})
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})

	t.Run("rejects wrong passwords and unknown emails alike", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod", Email: "mod@example.com"}, PasswordHash: "expected"})
		svc := NewAuthService(moderators, nil, plainVerifier, nil, time.Now, time.Hour)

		for _, params := range []AuthenticateParams{
			{Email: "mod@example.com", Password: "wrong"},
			{Email: "nobody@example.com", Password: "expected"},
			{Email: "", Password: "expected"},
		} {
			if _, err := svc.Authenticate(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %#v, got %v", params, err)
			}
		}
	})

	t.Run("propagates session repository failures", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("boom")
		moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod", Email: "mod@example.com"}, PasswordHash: "secret"})
		repo := newSessionRepositoryStub()
		repo.createErr = expected

		svc := NewAuthService(moderators, repo, plainVerifier, func() string { return "token" }, time.Now, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "mod@example.com", Password: "secret"})
		if !errors.Is(err, expected) {
			t.Fatalf("expected error %v, got %v", expected, err)
		}
	})

	t.Run("refuses to issue a session without a token", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod", Email: "mod@example.com"}, PasswordHash: "secret"})
		repo := newSessionRepositoryStub()
		svc := NewAuthService(moderators, repo, plainVerifier, func() string { return "" }, time.Now, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "mod@example.com", Password: "secret"})
		if !errors.Is(err, errTokenUnavailable) {
			t.Fatalf("expected errTokenUnavailable, got %v", err)
		}
		if len(repo.sessions) != 0 {
			t.Fatalf("expected no session to be stored, got %d", len(repo.sessions))
		}
	})

	t.Run("maps unavailable stores", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub()
		moderators.err = persistence.ErrUnavailable
		svc := NewAuthService(moderators, nil, plainVerifier, nil, time.Now, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "mod@example.com", Password: "secret"})
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestAuthService_RegisterModerator(t *testing.T) {
	t.Parallel()

	cheap := Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

	t.Run("stores a verifiable hash", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub()
		svc := NewAuthService(moderators, nil, nil, nil, time.Now, time.Hour)
		svc.SetHashParams(cheap)

		moderator, err := svc.RegisterModerator(context.Background(), RegisterModeratorParams{
			Email:       " Grace@Example.com",
			DisplayName: "Grace",
			Password:    "correct horse battery",
		})
		if err != nil {
			t.Fatalf("RegisterModerator failed: %v", err)
		}
		if moderator.Email != "grace@example.com" {
			t.Fatalf("expected normalised email, got %q", moderator.Email)
		}

		stored := moderators.byEmail["grace@example.com"]
		if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
			t.Fatalf("expected argon2id hash, got %q", stored.PasswordHash)
		}
		if err := VerifyPassword(stored.PasswordHash, "correct horse battery"); err != nil {
			t.Fatalf("expected stored hash to verify: %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		svc := NewAuthService(newModeratorStoreStub(), nil, nil, nil, time.Now, time.Hour)

		_, err := svc.RegisterModerator(context.Background(), RegisterModeratorParams{Email: "bad", Password: "short"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %#v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("reports duplicates", func(t *testing.T) {
		t.Parallel()

		moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod", Email: "grace@example.com"}})
		svc := NewAuthService(moderators, nil, nil, nil, time.Now, time.Hour)
		svc.SetHashParams(cheap)

		_, err := svc.RegisterModerator(context.Background(), RegisterModeratorParams{Email: "grace@example.com", DisplayName: "Grace", Password: "correct horse battery"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	t.Run("marks sessions revoked", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s1", ModeratorID: "mod", Token: "token", ExpiresAt: now.Add(time.Hour)})
		svc := NewAuthService(newModeratorStoreStub(), repo, nil, nil, func() time.Time { return now }, time.Hour)

		if err := svc.RevokeSession(context.Background(), " token "); err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		if stored := repo.sessions["token"]; stored.RevokedAt == nil || !stored.RevokedAt.Equal(now) {
			t.Fatalf("expected revoked timestamp, got %#v", stored.RevokedAt)
		}
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		t.Parallel()

		svc := NewAuthService(newModeratorStoreStub(), newSessionRepositoryStub(), nil, nil, time.Now, time.Hour)
		for _, token := range []string{"", "missing"} {
			if err := svc.RevokeSession(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %q, got %v", token, err)
			}
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)

	moderators := newModeratorStoreStub(ModeratorCredentials{Moderator: Moderator{ID: "mod-1", Email: "ada@example.com"}})
	repo := newSessionRepositoryStub()
	repo.seed(Session{ID: "s1", ModeratorID: "mod-1", Token: "active", ExpiresAt: now.Add(time.Hour)})
	repo.seed(Session{ID: "s2", ModeratorID: "mod-1", Token: "expired", ExpiresAt: now})
	repo.seed(Session{ID: "s3", ModeratorID: "mod-1", Token: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt})
	repo.seed(Session{ID: "s4", ModeratorID: "ghost", Token: "orphan", ExpiresAt: now.Add(time.Hour)})

	svc := NewAuthService(moderators, repo, nil, nil, func() time.Time { return now }, time.Hour)

	principal, err := svc.ValidateSession(context.Background(), "active")
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if !principal.IsModerator || principal.ModeratorID != "mod-1" || principal.Email != "ada@example.com" {
		t.Fatalf("unexpected principal %#v", principal)
	}

	cases := map[string]error{
		"":        ErrInvalidCredentials,
		"unknown": ErrUnauthorized,
		"expired": ErrSessionExpired,
		"revoked": ErrSessionRevoked,
		"orphan":  ErrUnauthorized,
	}
	for token, want := range cases {
		token, want := token, want
		t.Run("token "+token, func(t *testing.T) {
			t.Parallel()

			if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
		})
	}
}

type moderatorStoreStub struct {
	mu      sync.Mutex
	byEmail map[string]ModeratorCredentials
	err     error
	nextID  int
}

func newModeratorStoreStub(seed ...ModeratorCredentials) *moderatorStoreStub {
	stub := &moderatorStoreStub{byEmail: make(map[string]ModeratorCredentials)}
	for _, creds := range seed {
		stub.byEmail[creds.Moderator.Email] = creds
	}
	return stub
}

func (m *moderatorStoreStub) CreateModerator(ctx context.Context, creds ModeratorCredentials) (Moderator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Moderator{}, m.err
	}
	if _, exists := m.byEmail[creds.Moderator.Email]; exists {
		return Moderator{}, persistence.ErrDuplicate
	}
	m.nextID++
	if creds.Moderator.ID == "" {
		creds.Moderator.ID = "mod-" + string(rune('0'+m.nextID))
	}
	m.byEmail[creds.Moderator.Email] = creds
	return creds.Moderator, nil
}

func (m *moderatorStoreStub) GetModeratorCredentialsByEmail(ctx context.Context, email string) (ModeratorCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ModeratorCredentials{}, m.err
	}
	creds, ok := m.byEmail[email]
	if !ok {
		return ModeratorCredentials{}, persistence.ErrNotFound
	}
	return creds, nil
}

func (m *moderatorStoreStub) GetModerator(ctx context.Context, id string) (Moderator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Moderator{}, m.err
	}
	for _, creds := range m.byEmail {
		if creds.Moderator.ID == id {
			return creds.Moderator, nil
		}
	}
	return Moderator{}, persistence.ErrNotFound
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	deleteCalls []time.Time
	createErr   error
	deleteErr   error
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]Session)}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.sessions[session.Token] = session
}

func (s *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	return s.deleteErr
}
