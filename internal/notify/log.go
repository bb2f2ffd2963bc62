package notify

import (
	"context"
	"log/slog"

	"github.com/example/community-events/internal/application"
)

// LogNotifier writes notifications to a logger instead of a broker.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "LogNotifier")}
}

// Notify logs the notification at INFO. It never fails.
func (n *LogNotifier) Notify(ctx context.Context, organizerEmail string, notification application.RSVPNotification) error {
	n.logger.InfoContext(ctx, "rsvp notification",
		"organizer_email", organizerEmail,
		"event_id", notification.EventID,
		"event_title", notification.EventTitle,
		"attendee_name", notification.AttendeeName,
		"rsvp_date", notification.RSVPDate,
		"rsvp_time", notification.RSVPTime,
	)
	return nil
}
