package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/community-events/internal/application"
)

// SessionValidator resolves a session token into a principal.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// OrganizerAuthenticator resolves an event manage token into the organizer
// principal of that event.
type OrganizerAuthenticator interface {
	AuthenticateOrganizer(ctx context.Context, token string) (application.Principal, error)
}

// ManageTokenHeader carries an organizer's manage token.
const ManageTokenHeader = "X-Manage-Token"

// RequireModerator rejects requests without a valid moderator session and
// attaches the principal to the request context.
func RequireModerator(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_MISSING_TOKEN",
					Message:   errMissingSessionToken.Error(),
				})
				return
			}

			principal, ok := resolveSession(responder, validator, w, r, token)
			if !ok {
				return
			}
			if !principal.IsModerator {
				responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal admits moderators with a valid session and organizers
// presenting a manage token in ManageTokenHeader. Which event an organizer
// may touch is decided by the services.
func RequirePrincipal(sessions SessionValidator, organizers OrganizerAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				principal application.Principal
				ok        bool
			)

			manageToken := strings.TrimSpace(r.Header.Get(ManageTokenHeader))
			sessionToken := extractTokenFromRequest(r)
			switch {
			case manageToken != "" && organizers != nil:
				var err error
				principal, err = organizers.AuthenticateOrganizer(r.Context(), manageToken)
				switch {
				case errors.Is(err, application.ErrInvalidCredentials), errors.Is(err, application.ErrNotFound):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_MANAGE_TOKEN", Message: "The manage token is not valid."})
					return
				case err != nil:
					responder.handleServiceError(r.Context(), w, err)
					return
				}
				ok = true
			case sessionToken != "" && sessions != nil:
				principal, ok = resolveSession(responder, sessions, w, r, sessionToken)
			default:
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_MISSING_TOKEN",
					Message:   errMissingCredentials.Error(),
				})
				return
			}
			if !ok {
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveSession validates token and writes the error response itself when
// the session is not accepted.
func resolveSession(responder responder, validator SessionValidator, w http.ResponseWriter, r *http.Request, token string) (application.Principal, bool) {
	principal, err := validator.ValidateSession(r.Context(), token)
	if err == nil {
		return principal, true
	}

	switch {
	case errors.Is(err, application.ErrSessionExpired):
		responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_EXPIRED", Message: "Your session has expired. Please sign in again."})
	case errors.Is(err, application.ErrSessionRevoked),
		errors.Is(err, application.ErrUnauthorized),
		errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrNotFound):
		responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_SESSION", Message: "Your session is not valid. Please sign in again."})
	default:
		responder.handleServiceError(r.Context(), w, err)
	}
	return application.Principal{}, false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// RequestLogger attaches a request scoped logger and logs each request with its status.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}
