package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/community-events/internal/application"
)

type inboxService interface {
	List(ctx context.Context, principal application.Principal, unreadOnly bool) ([]application.InboxNotification, error)
	UnreadCount(ctx context.Context, principal application.Principal) (int, error)
	MarkRead(ctx context.Context, principal application.Principal, id string) (application.InboxNotification, error)
	MarkUnread(ctx context.Context, principal application.Principal, id string) (application.InboxNotification, error)
	Delete(ctx context.Context, principal application.Principal, id string) error
	Clear(ctx context.Context, principal application.Principal) (int, error)
	Preferences(ctx context.Context, principal application.Principal) (application.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, principal application.Principal, preferences application.NotificationPreferences) (application.NotificationPreferences, error)
}

// InboxHandler serves the caller's in-app notifications.
type InboxHandler struct {
	service   inboxService
	responder responder
	logger    *slog.Logger
}

// NewInboxHandler returns an InboxHandler backed by service.
func NewInboxHandler(service inboxService, logger *slog.Logger) *InboxHandler {
	base := defaultLogger(logger)
	return &InboxHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InboxHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "InboxHandler", operation, attrs...)
}

func (h *InboxHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// List handles GET /notifications. ?unread=true narrows to unread entries.
func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	unreadOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("unread")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"unread": "unread must be true or false"},
			})
			return
		}
		unreadOnly = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	notifications, err := h.service.List(r.Context(), principal, unreadOnly)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listNotificationsResponse{Notifications: make([]notificationDTO, 0, len(notifications))}
	for _, notification := range notifications {
		response.Notifications = append(response.Notifications, toNotificationDTO(notification))
	}
	response.Count = len(response.Notifications)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *InboxHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	count, err := h.service.UnreadCount(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, unreadCountResponse{Unread: count})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, true)
}

// MarkUnread handles POST /notifications/{id}/unread.
func (h *InboxHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, false)
}

func (h *InboxHandler) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var (
		notification application.InboxNotification
		err          error
	)
	if read {
		notification, err = h.service.MarkRead(r.Context(), principal, id)
	} else {
		notification, err = h.service.MarkUnread(r.Context(), principal, id)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toNotificationDTO(notification))
}

// Delete handles DELETE /notifications/{id}.
func (h *InboxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, mux.Vars(r)["id"]); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Clear handles DELETE /notifications.
func (h *InboxHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	removed, err := h.service.Clear(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, clearNotificationsResponse{Removed: removed})
}

// Preferences handles GET /notifications/preferences.
func (h *InboxHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	preferences, err := h.service.Preferences(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPreferencesDTO(preferences))
}

// UpdatePreferences handles PUT /notifications/preferences. An omitted
// in_app keeps in-app delivery on.
func (h *InboxHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdatePreferences", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode preferences request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	preferences := application.NotificationPreferences{InApp: req.InApp == nil || *req.InApp}
	for _, kind := range req.DisabledKinds {
		preferences.DisabledKinds = append(preferences.DisabledKinds, application.NotificationKind(kind))
	}

	principal, _ := PrincipalFromContext(r.Context())
	saved, err := h.service.UpdatePreferences(r.Context(), principal, preferences)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPreferencesDTO(saved))
}

type notificationDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	EventID    string `json:"event_id,omitempty"`
	EventTitle string `json:"event_title,omitempty"`
	Title      string `json:"title"`
	Message    string `json:"message,omitempty"`
	Read       bool   `json:"read"`
	ReadAt     string `json:"read_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type listNotificationsResponse struct {
	Notifications []notificationDTO `json:"notifications"`
	Count         int               `json:"count"`
}

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

type clearNotificationsResponse struct {
	Removed int `json:"removed"`
}

type preferencesRequest struct {
	InApp         *bool    `json:"in_app"`
	DisabledKinds []string `json:"disabled_kinds"`
}

type preferencesDTO struct {
	InApp         bool     `json:"in_app"`
	DisabledKinds []string `json:"disabled_kinds"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

func toNotificationDTO(notification application.InboxNotification) notificationDTO {
	dto := notificationDTO{
		ID:         notification.ID,
		Kind:       string(notification.Kind),
		EventID:    notification.EventID,
		EventTitle: notification.EventTitle,
		Title:      notification.Title,
		Message:    notification.Message,
		Read:       notification.ReadAt != nil,
	}
	if notification.ReadAt != nil {
		dto.ReadAt = notification.ReadAt.UTC().Format(time.RFC3339)
	}
	if !notification.CreatedAt.IsZero() {
		dto.CreatedAt = notification.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toPreferencesDTO(preferences application.NotificationPreferences) preferencesDTO {
	dto := preferencesDTO{InApp: preferences.InApp, DisabledKinds: make([]string, 0, len(preferences.DisabledKinds))}
	for _, kind := range preferences.DisabledKinds {
		dto.DisabledKinds = append(dto.DisabledKinds, string(kind))
	}
	if !preferences.UpdatedAt.IsZero() {
		dto.UpdatedAt = preferences.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
