package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/catalog"
)

type moderationService interface {
	GetEvent(ctx context.Context, principal application.Principal, id string) (application.Event, error)
	ListEventsByStatus(ctx context.Context, principal application.Principal, status application.EventStatus, filter catalog.Filter) ([]application.Event, error)
	ApproveEvent(ctx context.Context, principal application.Principal, id string) (application.Event, error)
	RejectEvent(ctx context.Context, principal application.Principal, id, reason string) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, id string) error
	DashboardStats(ctx context.Context, principal application.Principal) (application.DashboardStats, error)
}

// ModerationHandler serves the moderator dashboard endpoints.
type ModerationHandler struct {
	service   moderationService
	loc       *time.Location
	responder responder
	logger    *slog.Logger
}

// NewModerationHandler returns a ModerationHandler backed by service.
func NewModerationHandler(service moderationService, loc *time.Location, logger *slog.Logger) *ModerationHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &ModerationHandler{service: service, loc: loc, responder: newResponder(base), logger: base}
}

func (h *ModerationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ModerationHandler", operation, attrs...)
}

// List handles GET /moderation/events. The listing filters of GET /events apply.
func (h *ModerationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, vErr := parseFilter(r.URL.Query(), h.loc)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	status := application.EventStatus(r.URL.Query().Get("status"))

	events, err := h.service.ListEventsByStatus(r.Context(), principal, status, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{
		Events:     toEventDTOs(events),
		Count:      len(events),
		Categories: categoryCounts(events),
	})
}

// Get handles GET /moderation/events/{id}.
func (h *ModerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Approve handles POST /moderation/events/{id}/approve.
func (h *ModerationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.ApproveEvent(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Reject handles POST /moderation/events/{id}/reject. The body is optional.
func (h *ModerationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), "Reject", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reject request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.RejectEvent(r.Context(), principal, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Delete handles DELETE /moderation/events/{id}.
func (h *ModerationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, mux.Vars(r)["id"]); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Stats handles GET /moderation/stats.
func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.DashboardStats(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatsDTO(stats))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type categoryCountDTO struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type statsDTO struct {
	TotalEvents    int                `json:"total_events"`
	PendingEvents  int                `json:"pending_events"`
	ApprovedEvents int                `json:"approved_events"`
	RejectedEvents int                `json:"rejected_events"`
	TotalRSVPs     int                `json:"total_rsvps"`
	Categories     []categoryCountDTO `json:"categories"`
}

// toStatsDTO lists categories by descending count, then name.
func toStatsDTO(stats application.DashboardStats) statsDTO {
	categories := make([]categoryCountDTO, 0, len(stats.Categories))
	for category, count := range stats.Categories {
		categories = append(categories, categoryCountDTO{Category: category, Count: count})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Count != categories[j].Count {
			return categories[i].Count > categories[j].Count
		}
		return categories[i].Category < categories[j].Category
	})

	return statsDTO{
		TotalEvents:    stats.TotalEvents,
		PendingEvents:  stats.PendingEvents,
		ApprovedEvents: stats.ApprovedEvents,
		RejectedEvents: stats.RejectedEvents,
		TotalRSVPs:     stats.TotalRSVPs,
		Categories:     categories,
	}
}
