package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/persistence"
)

type capturingEventStore struct {
	created application.Event
}

func (c *capturingEventStore) ListEvents(ctx context.Context, query application.EventQuery) ([]application.Event, error) {
	return nil, nil
}

func (c *capturingEventStore) GetEvent(ctx context.Context, id string) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (c *capturingEventStore) GetEventByManageToken(ctx context.Context, token string) (application.Event, error) {
	if token == "" || token != c.created.ManageToken {
		return application.Event{}, application.ErrNotFound
	}
	return c.created, nil
}

func (c *capturingEventStore) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	event.ID = "stored-1"
	c.created = event
	return event, nil
}

func (c *capturingEventStore) UpdateEvent(ctx context.Context, id string, patch application.EventPatch) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (c *capturingEventStore) DeleteEvent(ctx context.Context, id string) error {
	return nil
}

type capturingModeratorStore struct {
	created application.ModeratorCredentials
}

func (c *capturingModeratorStore) CreateModerator(ctx context.Context, credentials application.ModeratorCredentials) (application.Moderator, error) {
	c.created = credentials
	moderator := credentials.Moderator
	moderator.ID = "moderator-1"
	return moderator, nil
}

func (c *capturingModeratorStore) GetModeratorCredentialsByEmail(ctx context.Context, email string) (application.ModeratorCredentials, error) {
	return c.created, nil
}

func (c *capturingModeratorStore) GetModerator(ctx context.Context, id string) (application.Moderator, error) {
	return c.created.Moderator, nil
}

func TestServiceFactoryNewEventService(t *testing.T) {
	factory := NewServiceFactory()
	store := &capturingEventStore{}

	svc := factory.NewEventService(EventServiceDeps{Events: store})
	event, err := svc.SubmitEvent(context.Background(), NewEventFixture().Input())
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}

	if event.ID != "stored-1" || event.Status != application.EventStatusPending {
		t.Fatalf("unexpected event %#v", event)
	}
	if !store.created.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), store.created.CreatedAt)
	}
	if event.ManageToken != "id-1" {
		t.Fatalf("expected a deterministic manage token, got %q", event.ManageToken)
	}

	organizer, err := svc.AuthenticateOrganizer(context.Background(), event.ManageToken)
	if err != nil || organizer.EventID != "stored-1" {
		t.Fatalf("expected organizer principal for stored-1, got %#v (%v)", organizer, err)
	}
}

func TestServiceFactoryNewInboxService(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewSQLiteHarness(t)
	moderator := harness.SeedModerator(t, NewModeratorFixture())

	svc := factory.NewInboxService(InboxServiceDeps{
		Notifications: &notificationRepositoryStore{repo: harness.Notifications},
		Moderators:    moderatorIDs{moderator.ID},
	})
	delivered, err := svc.DeliverToModerators(context.Background(), application.InboxMessage{
		Kind:  application.NotificationEventSubmitted,
		Title: "New event awaiting review",
	})
	if err != nil || delivered != 1 {
		t.Fatalf("expected one delivery, got %d (%v)", delivered, err)
	}

	stored, err := harness.Notifications.ListNotifications(context.Background(), application.ModeratorRecipient(moderator.ID), false, 0)
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored entry, got %#v (%v)", stored, err)
	}
	if !stored[0].CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected factory clock timestamp, got %v", stored[0].CreatedAt)
	}
}

func TestServiceFactoryNewAuthService(t *testing.T) {
	factory := NewServiceFactory()
	store := &capturingModeratorStore{}

	svc := factory.NewAuthService(AuthServiceDeps{Moderators: store, SessionTTL: time.Hour})
	if _, err := svc.RegisterModerator(context.Background(), application.RegisterModeratorParams{
		Email:       "Mod@Example.com",
		DisplayName: "Mod",
		Password:    "long enough password",
	}); err != nil {
		t.Fatalf("RegisterModerator returned error: %v", err)
	}

	if err := application.VerifyPassword(store.created.PasswordHash, "long enough password"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	result, err := svc.Authenticate(context.Background(), application.AuthenticateParams{Email: "mod@example.com", Password: "long enough password"})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if result.Session.ID != "id-1" || result.Session.Token != "id-2" {
		t.Fatalf("expected deterministic session identifiers, got %q and %q", result.Session.ID, result.Session.Token)
	}
	if !result.Session.ExpiresAt.Equal(factory.Clock.Current().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", result.Session.ExpiresAt)
	}
}

func TestSQLiteHarnessSeedsFixtures(t *testing.T) {
	harness := NewSQLiteHarness(t)

	events := harness.SeedEvents(t,
		NewEventFixture(WithEventCategory("Music")),
		NewEventFixture(WithEventStatus(application.EventStatusPending)),
	)
	harness.SeedRSVPs(t, NewRSVPFixture(events[0].ID), NewRSVPFixture(events[0].ID))
	harness.SeedModerator(t, NewModeratorFixture())

	count, err := harness.RSVPs.CountRSVPs(context.Background())
	if err != nil {
		t.Fatalf("CountRSVPs returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rsvps, got %d", count)
	}
	if events[1].Status != string(application.EventStatusPending) {
		t.Fatalf("expected pending status, got %q", events[1].Status)
	}
}

type moderatorIDs []string

func (m moderatorIDs) ListModeratorIDs(context.Context) ([]string, error) {
	return m, nil
}

// notificationRepositoryStore adapts the SQLite repository to the
// application store for the entry operations the factory test uses.
type notificationRepositoryStore struct {
	application.NotificationStore
	repo persistence.NotificationRepository
}

func (s *notificationRepositoryStore) CreateNotification(ctx context.Context, notification application.InboxNotification) (application.InboxNotification, error) {
	_, err := s.repo.CreateNotification(ctx, persistence.Notification{
		Recipient: notification.Recipient,
		Kind:      string(notification.Kind),
		Title:     notification.Title,
		CreatedAt: notification.CreatedAt,
	})
	return notification, err
}

func (s *notificationRepositoryStore) GetNotificationPreferences(context.Context, string) (application.NotificationPreferences, error) {
	return application.NotificationPreferences{}, application.ErrNotFound
}
