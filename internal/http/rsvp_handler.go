package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/community-events/internal/application"
)

type rsvpService interface {
	SubmitRSVP(ctx context.Context, params application.SubmitRSVPParams) (application.RSVPResult, error)
	AttendeeCount(ctx context.Context, eventID string) (int, error)
	RemoveRSVP(ctx context.Context, rsvpID, eventID string) (int, error)
	ListRSVPs(ctx context.Context, principal application.Principal, eventID string) ([]application.RSVP, error)
	ListAllRSVPs(ctx context.Context, principal application.Principal) ([]application.RSVP, error)
	ListRSVPsByEmail(ctx context.Context, principal application.Principal, email string) ([]application.RSVP, error)
}

// RSVPHandler serves RSVP submission and attendee listings.
type RSVPHandler struct {
	service   rsvpService
	responder responder
	logger    *slog.Logger
}

// NewRSVPHandler returns an RSVPHandler backed by service.
func NewRSVPHandler(service rsvpService, logger *slog.Logger) *RSVPHandler {
	base := defaultLogger(logger)
	return &RSVPHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RSVPHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RSVPHandler", operation, attrs...)
}

// Submit handles POST /events/{id}/rsvps. A duplicate RSVP answers 409 with
// the existing attendee count.
func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := mux.Vars(r)["id"]
	var req rsvpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Submit", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode rsvp request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	userID := "guest"
	if principal, ok := PrincipalFromContext(r.Context()); ok && principal.ModeratorID != "" {
		userID = principal.ModeratorID
	}

	result, err := h.service.SubmitRSVP(r.Context(), application.SubmitRSVPParams{
		EventID: eventID,
		Attendee: application.Attendee{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		},
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, application.ErrDuplicateRSVP) {
			h.responder.writeJSON(r.Context(), w, http.StatusConflict, rsvpResponse{
				Message:       result.Message,
				AttendeeCount: result.AttendeeCount,
				Duplicate:     true,
			})
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	rsvp := toRSVPDTO(result.RSVP)
	response := rsvpResponse{
		RSVP:          &rsvp,
		Message:       result.Message,
		AttendeeCount: result.AttendeeCount,
		Notified:      result.Notified,
	}
	if result.CountErr != nil {
		response.Warning = staleCountWarning
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, response)
}

const staleCountWarning = "Your RSVP is saved, but the attendee count may take a moment to update."

// Count handles GET /events/{id}/attendees/count.
func (h *RSVPHandler) Count(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := mux.Vars(r)["id"]
	count, err := h.service.AttendeeCount(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendeeCountResponse{EventID: eventID, AttendeeCount: count})
}

// ListForEvent handles GET /events/{id}/rsvps for the event's organizer or a
// moderator.
func (h *RSVPHandler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rsvps, err := h.service.ListRSVPs(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRSVPsResponse{RSVPs: toRSVPDTOs(rsvps), Count: len(rsvps)})
}

// List handles GET /moderation/rsvps, narrowed to one attendee by ?email=.
func (h *RSVPHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var (
		rsvps []application.RSVP
		err   error
	)
	if email := r.URL.Query().Get("email"); email != "" {
		rsvps, err = h.service.ListRSVPsByEmail(r.Context(), principal, email)
	} else {
		rsvps, err = h.service.ListAllRSVPs(r.Context(), principal)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRSVPsResponse{RSVPs: toRSVPDTOs(rsvps), Count: len(rsvps)})
}

// Delete handles DELETE /events/{id}/rsvps/{rsvpID}.
func (h *RSVPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	count, err := h.service.RemoveRSVP(r.Context(), vars["rsvpID"], vars["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendeeCountResponse{EventID: vars["id"], AttendeeCount: count})
}

type rsvpRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type rsvpDTO struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type rsvpResponse struct {
	RSVP          *rsvpDTO `json:"rsvp,omitempty"`
	Message       string   `json:"message"`
	AttendeeCount int      `json:"attendee_count"`
	Notified      bool     `json:"notified"`
	Duplicate     bool     `json:"duplicate,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

type listRSVPsResponse struct {
	RSVPs []rsvpDTO `json:"rsvps"`
	Count int       `json:"count"`
}

type attendeeCountResponse struct {
	EventID       string `json:"event_id"`
	AttendeeCount int    `json:"attendee_count"`
}

func toRSVPDTO(rsvp application.RSVP) rsvpDTO {
	dto := rsvpDTO{
		ID:      rsvp.ID,
		EventID: rsvp.EventID,
		Name:    rsvp.Attendee.Name,
		Email:   rsvp.Attendee.Email,
		Phone:   rsvp.Attendee.Phone,
		UserID:  rsvp.UserID,
		Status:  rsvp.Status,
	}
	if !rsvp.CreatedAt.IsZero() {
		dto.CreatedAt = rsvp.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toRSVPDTOs(rsvps []application.RSVP) []rsvpDTO {
	dtos := make([]rsvpDTO, 0, len(rsvps))
	for _, rsvp := range rsvps {
		dtos = append(dtos, toRSVPDTO(rsvp))
	}
	return dtos
}
