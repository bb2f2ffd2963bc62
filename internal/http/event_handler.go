package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/catalog"
)

type eventService interface {
	SubmitEvent(ctx context.Context, input application.EventInput) (application.Event, error)
	UpdateEvent(ctx context.Context, principal application.Principal, id string, input application.EventInput) (application.Event, error)
	GetPublicEvent(ctx context.Context, id string) (application.Event, error)
	GetEvent(ctx context.Context, principal application.Principal, id string) (application.Event, error)
	ListPublicEvents(ctx context.Context, filter catalog.Filter) ([]application.Event, error)
	BrowsePublicEvents(ctx context.Context, filter catalog.Filter) (application.EventListing, error)
}

type calendarFeed interface {
	Write(w io.Writer, events []application.Event, stamp time.Time) error
}

// EventHandler serves the public event listing and submissions.
type EventHandler struct {
	service   eventService
	feed      calendarFeed
	loc       *time.Location
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewEventHandler returns an EventHandler. Query dates are read in loc, and
// a nil feed disables the iCalendar endpoint.
func NewEventHandler(service eventService, feed calendarFeed, loc *time.Location, logger *slog.Logger) *EventHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &EventHandler{service: service, feed: feed, loc: loc, now: time.Now, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List handles GET /events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, vErr := parseFilter(r.URL.Query(), h.loc)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	listing, err := h.service.BrowsePublicEvents(r.Context(), filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	categories := listing.Categories
	if categories == nil {
		categories = map[string]int{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{
		Events:     toEventDTOs(listing.Events),
		Count:      len(listing.Events),
		Categories: categories,
	})
}

// Get handles GET /events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	event, err := h.service.GetPublicEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Create handles POST /events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.SubmitEvent(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", "/events/"+event.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createEventResponse{
		eventDTO:    toEventDTO(event),
		ManageToken: event.ManageToken,
	})
}

// Update handles PUT /events/{id} for the event's organizer or a moderator.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := mux.Vars(r)["id"]
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.UpdateEvent(r.Context(), principal, eventID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Manage handles GET /events/{id}/manage, the organizer's view of their own
// event in any moderation state.
func (h *EventHandler) Manage(w http.ResponseWriter, r *http.Request) {
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

// Calendar handles GET /events.ics.
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.feed == nil {
		http.NotFound(w, r)
		return
	}

	filter, vErr := parseFilter(r.URL.Query(), h.loc)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	events, err := h.service.ListPublicEvents(r.Context(), filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	if err := h.feed.Write(w, events, h.now()); err != nil {
		h.log(r.Context(), "Calendar").ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

const queryDateLayout = "2006-01-02"

// parseFilter reads the listing query parameters. from and to cover whole
// days so a single-day range includes events later that day.
func parseFilter(values url.Values, loc *time.Location) (catalog.Filter, error) {
	filter := catalog.Filter{
		SearchText: values.Get("q"),
		Sort:       catalog.ParseSortKey(values.Get("sort")),
	}

	for _, raw := range values["category"] {
		for _, category := range strings.Split(raw, ",") {
			if category = strings.TrimSpace(category); category != "" && !strings.EqualFold(category, "all") {
				filter.Categories = append(filter.Categories, category)
			}
		}
	}

	vErr := &application.ValidationError{}
	parse := func(key string) *time.Time {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			return nil
		}
		day, err := time.ParseInLocation(queryDateLayout, raw, loc)
		if err != nil {
			if vErr.FieldErrors == nil {
				vErr.FieldErrors = make(map[string]string)
			}
			vErr.FieldErrors[key] = fmt.Sprintf("%s must be a date like %s", key, queryDateLayout)
			return nil
		}
		return &day
	}

	filter.DateFrom = parse("from")
	if to := parse("to"); to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.DateTo = &end
	}
	filter.SelectedDate = parse("date")

	if vErr.HasErrors() {
		return catalog.Filter{}, vErr
	}
	return filter, nil
}

type eventRequest struct {
	Title          string `json:"title"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Location       string `json:"location"`
	OrganizerName  string `json:"organizer_name"`
	OrganizerEmail string `json:"organizer_email"`
	OrganizerPhone string `json:"organizer_phone"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		Title:          r.Title,
		Category:       r.Category,
		Description:    r.Description,
		Date:           r.Date,
		Time:           r.Time,
		Location:       r.Location,
		OrganizerName:  r.OrganizerName,
		OrganizerEmail: r.OrganizerEmail,
		OrganizerPhone: r.OrganizerPhone,
	}
}

type organizerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type eventDTO struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Category        string       `json:"category"`
	Description     string       `json:"description"`
	Date            string       `json:"date"`
	Time            string       `json:"time,omitempty"`
	Location        string       `json:"location"`
	Organizer       organizerDTO `json:"organizer"`
	Status          string       `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	AttendeeCount   int          `json:"attendee_count"`
	CreatedAt       string       `json:"created_at"`
}

// createEventResponse is the only response that carries the manage token.
type createEventResponse struct {
	eventDTO
	ManageToken string `json:"manage_token"`
}

type listEventsResponse struct {
	Events     []eventDTO     `json:"events"`
	Count      int            `json:"count"`
	Categories map[string]int `json:"categories"`
}

func toEventDTO(event application.Event) eventDTO {
	dto := eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		Category:    event.Category,
		Description: event.Description,
		Date:        event.Date,
		Time:        event.Time,
		Location:    event.Location,
		Organizer: organizerDTO{
			Name:  event.Organizer.Name,
			Email: event.Organizer.Email,
			Phone: event.Organizer.Phone,
		},
		Status:          string(event.Status),
		RejectionReason: event.RejectionReason,
		AttendeeCount:   event.AttendeeCount,
	}
	if !event.CreatedAt.IsZero() {
		dto.CreatedAt = event.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	return dtos
}

func categoryCounts(events []application.Event) map[string]int {
	entries := make([]catalog.Event, 0, len(events))
	for _, event := range events {
		entries = append(entries, catalog.Event{ID: event.ID, Category: event.Category})
	}
	return catalog.CategoryCounts(entries)
}
