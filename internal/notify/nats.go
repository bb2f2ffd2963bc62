package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/example/community-events/internal/application"
)

const (
	// DefaultSubject is the subject RSVP notifications are published on.
	DefaultSubject = "events.rsvp.notifications"
	// DefaultStream is the JetStream stream capturing DefaultSubject.
	DefaultStream = "EVENTS_RSVP_NOTIFICATIONS"
)

// Publisher is the subset of jetstream.JetStream used to send notifications.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Message is the JSON document published for each RSVP.
type Message struct {
	OrganizerEmail string    `json:"organizer_email"`
	OrganizerName  string    `json:"organizer_name"`
	EventID        string    `json:"event_id"`
	RSVPID         string    `json:"rsvp_id"`
	EventTitle     string    `json:"event_title"`
	EventDate      string    `json:"event_date"`
	EventLocation  string    `json:"event_location"`
	AttendeeName   string    `json:"attendee_name"`
	AttendeeEmail  string    `json:"attendee_email"`
	AttendeePhone  string    `json:"attendee_phone"`
	RSVPDate       string    `json:"rsvp_date"`
	RSVPTime       string    `json:"rsvp_time"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

func newMessage(organizerEmail string, n application.RSVPNotification) Message {
	return Message{
		OrganizerEmail: organizerEmail,
		OrganizerName:  n.OrganizerName,
		EventID:        n.EventID,
		RSVPID:         n.RSVPID,
		EventTitle:     n.EventTitle,
		EventDate:      n.EventDate,
		EventLocation:  n.EventLocation,
		AttendeeName:   n.AttendeeName,
		AttendeeEmail:  n.AttendeeEmail,
		AttendeePhone:  n.AttendeePhone,
		RSVPDate:       n.RSVPDate,
		RSVPTime:       n.RSVPTime,
		SubmittedAt:    n.SubmittedAt,
	}
}

// messageID keys JetStream deduplication so a retried publish of one RSVP is
// stored once while a later RSVP from the same attendee is not dropped.
func messageID(m Message) string {
	if m.RSVPID != "" {
		return "rsvp:" + m.RSVPID
	}
	return fmt.Sprintf("%s:%s:%d", m.EventID, strings.ToLower(m.AttendeeEmail), m.SubmittedAt.UnixNano())
}

// NATSNotifier publishes RSVP notifications to JetStream.
type NATSNotifier struct {
	publisher Publisher
	subject   string
	logger    *slog.Logger
}

// NewNATSNotifier wraps an existing publisher. An empty subject uses DefaultSubject.
func NewNATSNotifier(publisher Publisher, subject string, logger *slog.Logger) *NATSNotifier {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{
		publisher: publisher,
		subject:   subject,
		logger:    logger.With("component", "NATSNotifier"),
	}
}

// Notify publishes notification for organizerEmail and waits for the stream ack.
func (n *NATSNotifier) Notify(ctx context.Context, organizerEmail string, notification application.RSVPNotification) error {
	if n == nil || n.publisher == nil {
		return errors.New("notify: publisher not configured")
	}

	msg := newMessage(organizerEmail, notification)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}

	ack, err := n.publisher.Publish(ctx, n.subject, data, jetstream.WithMsgID(messageID(msg)))
	if err != nil {
		return fmt.Errorf("notify: publish to %s: %w", n.subject, err)
	}

	attrs := []any{"subject", n.subject, "event_id", msg.EventID}
	if ack != nil {
		attrs = append(attrs, "stream", ack.Stream, "sequence", ack.Sequence, "duplicate", ack.Duplicate)
	}
	n.logger.DebugContext(ctx, "rsvp notification published", attrs...)
	return nil
}

// Connection owns the NATS connection behind a NATSNotifier.
type Connection struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// streamConfig describes the stream Connect maintains. Duplicates bounds the
// window in which messageID deduplicates retries.
func streamConfig(stream, subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       stream,
		Subjects:   []string{subject},
		Duplicates: 10 * time.Minute,
	}
}

// Connect dials url and creates the stream capturing subject, or updates an
// existing stream to the current configuration.
func Connect(ctx context.Context, url, stream, subject string) (*Connection, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("notify: NATS url is required")
	}
	if stream == "" {
		stream = DefaultStream
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url, nats.Name("community-events"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, streamConfig(stream, subject)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: create or update stream %s: %w", stream, err)
	}

	return &Connection{conn: conn, js: js}, nil
}

// JetStream returns the publisher for NewNATSNotifier.
func (c *Connection) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains pending publishes and closes the connection.
func (c *Connection) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
