package testfixtures

import (
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/catalog"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// Engine returns a UTC catalog engine using English collation.
func (f *ServiceFactory) Engine() *catalog.Engine {
	return catalog.NewEngine(time.UTC, language.English)
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events application.EventStore
	RSVPs  application.RSVPStore
	Engine *catalog.Engine
	Inbox  application.InboxPoster
	// ManageTokens defaults to the factory's ID generator.
	ManageTokens func() (string, error)
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewEventService builds an event service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	engine := deps.Engine
	if engine == nil {
		engine = f.Engine()
	}
	tokens := deps.ManageTokens
	if tokens == nil {
		next := f.IDGenerator.NextFunc()
		tokens = func() (string, error) { return next(), nil }
	}
	svc := application.NewEventServiceWithLogger(deps.Events, deps.RSVPs, engine, now, deps.Logger)
	svc.SetTokenGenerator(tokens)
	if deps.Inbox != nil {
		svc.SetInbox(deps.Inbox)
	}
	return svc
}

// RSVPServiceDeps captures dependencies for constructing an RSVP service.
type RSVPServiceDeps struct {
	Events        application.EventStore
	RSVPs         application.RSVPStore
	Notifier      application.Notifier
	NotifyTimeout time.Duration
	Inbox         application.InboxPoster
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewRSVPService builds an RSVP service using the supplied dependencies.
func (f *ServiceFactory) NewRSVPService(deps RSVPServiceDeps) *application.RSVPService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	svc := application.NewRSVPServiceWithLogger(deps.Events, deps.RSVPs, deps.Notifier, now, deps.Logger)
	svc.SetNotifyTimeout(deps.NotifyTimeout)
	if deps.Inbox != nil {
		svc.SetInbox(deps.Inbox)
	}
	return svc
}

// InboxServiceDeps captures dependencies for constructing an inbox service.
type InboxServiceDeps struct {
	Notifications application.NotificationStore
	Moderators    application.ModeratorDirectory
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewInboxService builds an inbox service using the supplied dependencies.
func (f *ServiceFactory) NewInboxService(deps InboxServiceDeps) *application.InboxService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewInboxServiceWithLogger(deps.Notifications, deps.Moderators, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Moderators     application.ModeratorStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// CheapHashParams keeps argon2id fast enough for unit tests.
var CheapHashParams = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// NewAuthService builds an auth service using the supplied dependencies.
// Passwords are hashed with CheapHashParams.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	svc := application.NewAuthServiceWithLogger(
		deps.Moderators,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
	svc.SetHashParams(CheapHashParams)
	return svc
}
