// Package http exposes the community events API over gorilla/mux.
//
// Public endpoints:
//   - GET /events: approved events. Query: q, category (repeatable or comma
//     separated), from, to, date (YYYY-MM-DD in the site time zone) and sort
//     (date-ascending, date-desc, name-asc, name-desc, rsvp-desc).
//   - GET /events.ics: the same listing as an iCalendar feed.
//   - GET /events/{id}: one approved event.
//   - POST /events: submits an event for moderation. Body: eventRequest.
//   - POST /events/{id}/rsvps: RSVPs to an approved event. Body: rsvpRequest.
//     A repeated email for the same event yields 409 with the duplicate message.
//   - GET /events/{id}/attendees/count: the recomputed attendee count.
//   - POST /sessions, DELETE /sessions/current: moderator sign in and out.
//
// Moderator endpoints require a session token in the Authorization header
// (Bearer) or the session_token cookie:
//   - GET /events/{id}/rsvps, DELETE /events/{id}/rsvps/{rsvpID}
//   - GET /moderation/events?status=, GET /moderation/events/{id}
//   - POST /moderation/events/{id}/approve, POST /moderation/events/{id}/reject
//   - DELETE /moderation/events/{id}
//   - GET /moderation/stats, GET /moderation/rsvps?email=
//
// Request/response DTOs live alongside their respective handlers.
package http
