// Package notify delivers RSVP notifications to event organizers.
//
// The NATS notifier publishes each notification to a JetStream subject where
// an external mail worker consumes it. The log notifier records the same
// payload through slog and is used when no broker is configured.
package notify
