package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig wires handlers into NewRouter. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Auth       *AuthHandler
	Events     *EventHandler
	RSVPs      *RSVPHandler
	Moderation *ModerationHandler
	Inbox      *InboxHandler
	Sessions   SessionValidator
	// Organizers resolves manage tokens on routes open to event organizers.
	Organizers OrganizerAuthenticator
	Health     func(ctx context.Context) error
	Logger     *slog.Logger
	Middleware []mux.MiddlewareFunc
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	})

	moderatorOnly := func(h http.HandlerFunc) http.Handler {
		if cfg.Sessions == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: statusMessage(http.StatusUnauthorized)})
			})
		}
		return RequireModerator(cfg.Sessions, cfg.Logger)(h)
	}

	signedIn := func(h http.HandlerFunc) http.Handler {
		return RequirePrincipal(cfg.Sessions, cfg.Organizers, cfg.Logger)(h)
	}

	if cfg.Health != nil {
		router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			responder := newResponder(cfg.Logger)
			if err := cfg.Health(r.Context()); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
			responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
		}).Methods(http.MethodGet)
	}

	if cfg.Auth != nil {
		router.HandleFunc("/sessions", cfg.Auth.CreateSession).Methods(http.MethodPost)
		router.HandleFunc("/sessions/current", cfg.Auth.DeleteCurrentSession).Methods(http.MethodDelete)
	}

	if cfg.Events != nil {
		router.HandleFunc("/events", cfg.Events.List).Methods(http.MethodGet)
		router.HandleFunc("/events", cfg.Events.Create).Methods(http.MethodPost)
		router.HandleFunc("/events.ics", cfg.Events.Calendar).Methods(http.MethodGet)
		router.HandleFunc("/events/{id}", cfg.Events.Get).Methods(http.MethodGet)
		router.Handle("/events/{id}", signedIn(cfg.Events.Update)).Methods(http.MethodPut)
		router.Handle("/events/{id}/manage", signedIn(cfg.Events.Manage)).Methods(http.MethodGet)
	}

	if cfg.RSVPs != nil {
		router.HandleFunc("/events/{id}/rsvps", cfg.RSVPs.Submit).Methods(http.MethodPost)
		router.HandleFunc("/events/{id}/attendees/count", cfg.RSVPs.Count).Methods(http.MethodGet)
		router.Handle("/events/{id}/rsvps", signedIn(cfg.RSVPs.ListForEvent)).Methods(http.MethodGet)
		router.Handle("/events/{id}/rsvps/{rsvpID}", moderatorOnly(cfg.RSVPs.Delete)).Methods(http.MethodDelete)
		router.Handle("/moderation/rsvps", moderatorOnly(cfg.RSVPs.List)).Methods(http.MethodGet)
	}

	if cfg.Moderation != nil {
		router.Handle("/moderation/events", moderatorOnly(cfg.Moderation.List)).Methods(http.MethodGet)
		router.Handle("/moderation/events/{id}", moderatorOnly(cfg.Moderation.Get)).Methods(http.MethodGet)
		router.Handle("/moderation/events/{id}", moderatorOnly(cfg.Moderation.Delete)).Methods(http.MethodDelete)
		router.Handle("/moderation/events/{id}/approve", moderatorOnly(cfg.Moderation.Approve)).Methods(http.MethodPost)
		router.Handle("/moderation/events/{id}/reject", moderatorOnly(cfg.Moderation.Reject)).Methods(http.MethodPost)
		router.Handle("/moderation/stats", moderatorOnly(cfg.Moderation.Stats)).Methods(http.MethodGet)
	}

	if cfg.Inbox != nil {
		router.Handle("/notifications", signedIn(cfg.Inbox.List)).Methods(http.MethodGet)
		router.Handle("/notifications", signedIn(cfg.Inbox.Clear)).Methods(http.MethodDelete)
		router.Handle("/notifications/unread-count", signedIn(cfg.Inbox.UnreadCount)).Methods(http.MethodGet)
		router.Handle("/notifications/preferences", signedIn(cfg.Inbox.Preferences)).Methods(http.MethodGet)
		router.Handle("/notifications/preferences", signedIn(cfg.Inbox.UpdatePreferences)).Methods(http.MethodPut)
		router.Handle("/notifications/{id}/read", signedIn(cfg.Inbox.MarkRead)).Methods(http.MethodPost)
		router.Handle("/notifications/{id}/unread", signedIn(cfg.Inbox.MarkUnread)).Methods(http.MethodPost)
		router.Handle("/notifications/{id}", signedIn(cfg.Inbox.Delete)).Methods(http.MethodDelete)
	}

	for _, middleware := range cfg.Middleware {
		if middleware != nil {
			router.Use(middleware)
		}
	}

	return router
}
