package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/calendar"
	"github.com/example/community-events/internal/catalog"
	"github.com/example/community-events/internal/config"
	httptransport "github.com/example/community-events/internal/http"
	"github.com/example/community-events/internal/notify"
	"github.com/example/community-events/internal/persistence/sqlite"
	"github.com/example/community-events/internal/persistence/sqlite/migration"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(logger); err != nil {
		logger.Error("events API stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until the process is signalled. Deferred cleanup always runs
// before it returns.
func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer app.Close()

	if cfg.ReconcileEnabled() {
		scheduler, err := startReconciler(cfg.ReconcileSchedule, app.rsvps, logger)
		if err != nil {
			return fmt.Errorf("schedule attendee count reconciliation: %w", err)
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("events API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app holds the wired services behind the HTTP handler.
type app struct {
	handler http.Handler
	store   *sqlite.Store
	events  *application.EventService
	rsvps   *application.RSVPService
	auth    *application.AuthService
	inbox   *application.InboxService
	nats    *notify.Connection
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	a := &app{store: store, logger: logger}

	var notifier application.Notifier = notify.NewLogNotifier(logger)
	if cfg.NATSURL != "" {
		conn, err := notify.Connect(ctx, cfg.NATSURL, cfg.NATSStream, cfg.NATSSubject)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = conn
		notifier = notify.NewNATSNotifier(conn.JetStream(), cfg.NATSSubject, logger)
		logger.Info("publishing rsvp notifications to NATS", "stream", cfg.NATSStream, "subject", cfg.NATSSubject)
	}

	now := time.Now
	tokenGenerator := func() string {
		token, err := randomHex(rand.Reader, 32)
		if err != nil {
			logger.Error("session token generation failed", "error", err)
			return ""
		}
		return token
	}
	engine := catalog.NewEngine(cfg.Location, cfg.Locale)

	eventStore := newEventStoreAdapter(store)
	rsvpStore := newRSVPStoreAdapter(store)

	moderatorStore := newModeratorStoreAdapter(store)

	a.inbox = application.NewInboxServiceWithLogger(newNotificationStoreAdapter(store), moderatorStore, now, logger)
	a.events = application.NewEventServiceWithLogger(eventStore, rsvpStore, engine, now, logger)
	a.events.SetInbox(a.inbox)
	a.rsvps = application.NewRSVPServiceWithLogger(eventStore, rsvpStore, notifier, now, logger)
	a.rsvps.SetNotifyTimeout(cfg.NotifyTimeout)
	a.rsvps.SetInbox(a.inbox)
	a.auth = application.NewAuthServiceWithLogger(moderatorStore, newSessionRepositoryAdapter(store), nil, tokenGenerator, now, cfg.SessionTTL, logger)

	if err := bootstrapModerator(ctx, a.auth, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(a.auth, logger),
		Events:     httptransport.NewEventHandler(a.events, calendar.NewFeed(engine, "Community Events", ""), cfg.Location, logger),
		RSVPs:      httptransport.NewRSVPHandler(a.rsvps, logger),
		Moderation: httptransport.NewModerationHandler(a.events, cfg.Location, logger),
		Inbox:      httptransport.NewInboxHandler(a.inbox, logger),
		Sessions:   a.auth,
		Organizers: a.events,
		Health:     store.Ping,
		Logger:     logger,
		Middleware: []mux.MiddlewareFunc{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

// Close releases the NATS connection and the database.
func (a *app) Close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.Error("failed to close NATS connection", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func bootstrapModerator(ctx context.Context, auth *application.AuthService, cfg config.Config, logger *slog.Logger) error {
	if cfg.BootstrapModeratorEmail == "" {
		return nil
	}
	_, err := auth.RegisterModerator(ctx, application.RegisterModeratorParams{
		Email:       cfg.BootstrapModeratorEmail,
		DisplayName: cfg.BootstrapModeratorName,
		Password:    cfg.BootstrapModeratorPassword,
	})
	if errors.Is(err, application.ErrAlreadyExists) {
		logger.Info("bootstrap moderator already present", "email", cfg.BootstrapModeratorEmail)
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap moderator: %w", err)
	}
	return nil
}

type countReconciler interface {
	ReconcileCounts(ctx context.Context) (int, error)
}

// startReconciler runs ReconcileCounts on schedule. A run still in progress
// causes the next tick to be skipped.
func startReconciler(schedule string, reconciler countReconciler, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := reconciler.ReconcileCounts(ctx); err != nil {
			logger.Error("scheduled attendee count reconciliation failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	scheduler.Start()
	logger.Info("attendee count reconciliation scheduled", "schedule", schedule)
	return scheduler, nil
}

// randomHex reads n random bytes from r and hex encodes them.
func randomHex(r io.Reader, n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
