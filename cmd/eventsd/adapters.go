package main

import (
	"context"
	"time"

	"github.com/example/community-events/internal/application"
	"github.com/example/community-events/internal/persistence"
)

type eventStoreAdapter struct {
	repo persistence.EventRepository
}

func newEventStoreAdapter(repo persistence.EventRepository) *eventStoreAdapter {
	return &eventStoreAdapter{repo: repo}
}

func (a *eventStoreAdapter) ListEvents(ctx context.Context, query application.EventQuery) ([]application.Event, error) {
	filter := persistence.EventFilter{}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, string(status))
	}
	models, err := a.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

func (a *eventStoreAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) GetEventByManageToken(ctx context.Context, token string) (application.Event, error) {
	stored, err := a.repo.GetEventByManageToken(ctx, token)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	stored, err := a.repo.CreateEvent(ctx, toPersistenceEvent(event))
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) UpdateEvent(ctx context.Context, id string, patch application.EventPatch) (application.Event, error) {
	update := persistence.EventUpdate{
		RejectionReason: cloneString(patch.RejectionReason),
		UpdatedAt:       patch.UpdatedAt,
	}
	if details := patch.Details; details != nil {
		update.Details = &persistence.EventDetails{
			Title:          details.Title,
			Category:       details.Category,
			Description:    details.Description,
			Date:           details.Date,
			Time:           details.Time,
			Location:       details.Location,
			OrganizerName:  details.Organizer.Name,
			OrganizerEmail: details.Organizer.Email,
			OrganizerPhone: details.Organizer.Phone,
		}
	}
	if patch.Status != nil {
		status := string(*patch.Status)
		update.Status = &status
	}
	if patch.AttendeeCount != nil {
		count := *patch.AttendeeCount
		update.AttendeeCount = &count
	}
	stored, err := a.repo.UpdateEvent(ctx, id, update)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

type rsvpStoreAdapter struct {
	repo persistence.RSVPRepository
}

func newRSVPStoreAdapter(repo persistence.RSVPRepository) *rsvpStoreAdapter {
	return &rsvpStoreAdapter{repo: repo}
}

func (a *rsvpStoreAdapter) ListRSVPsByEvent(ctx context.Context, eventID string) ([]application.RSVP, error) {
	return toApplicationRSVPs(a.repo.ListRSVPsByEvent(ctx, eventID))
}

func (a *rsvpStoreAdapter) FindRSVPByEventAndEmail(ctx context.Context, eventID, email string) (application.RSVP, error) {
	stored, err := a.repo.FindRSVPByEventAndEmail(ctx, eventID, email)
	if err != nil {
		return application.RSVP{}, err
	}
	return toApplicationRSVP(stored), nil
}

func (a *rsvpStoreAdapter) CreateRSVP(ctx context.Context, rsvp application.RSVP) (application.RSVP, error) {
	stored, err := a.repo.CreateRSVP(ctx, persistence.RSVP{
		ID:        rsvp.ID,
		EventID:   rsvp.EventID,
		Name:      rsvp.Attendee.Name,
		Email:     rsvp.Attendee.Email,
		Phone:     rsvp.Attendee.Phone,
		UserID:    rsvp.UserID,
		Status:    rsvp.Status,
		CreatedAt: rsvp.CreatedAt,
	})
	if err != nil {
		return application.RSVP{}, err
	}
	return toApplicationRSVP(stored), nil
}

func (a *rsvpStoreAdapter) DeleteRSVP(ctx context.Context, id string) error {
	return a.repo.DeleteRSVP(ctx, id)
}

func (a *rsvpStoreAdapter) ListRSVPs(ctx context.Context) ([]application.RSVP, error) {
	return toApplicationRSVPs(a.repo.ListRSVPs(ctx))
}

func (a *rsvpStoreAdapter) ListRSVPsByEmail(ctx context.Context, email string) ([]application.RSVP, error) {
	return toApplicationRSVPs(a.repo.ListRSVPsByEmail(ctx, email))
}

func (a *rsvpStoreAdapter) CountRSVPs(ctx context.Context) (int, error) {
	return a.repo.CountRSVPs(ctx)
}

type moderatorStoreAdapter struct {
	repo persistence.ModeratorRepository
}

func newModeratorStoreAdapter(repo persistence.ModeratorRepository) *moderatorStoreAdapter {
	return &moderatorStoreAdapter{repo: repo}
}

func (a *moderatorStoreAdapter) CreateModerator(ctx context.Context, credentials application.ModeratorCredentials) (application.Moderator, error) {
	stored, err := a.repo.CreateModerator(ctx, persistence.Moderator{
		ID:           credentials.Moderator.ID,
		Email:        credentials.Moderator.Email,
		DisplayName:  credentials.Moderator.DisplayName,
		PasswordHash: credentials.PasswordHash,
		Disabled:     credentials.Disabled,
		CreatedAt:    credentials.Moderator.CreatedAt,
		UpdatedAt:    credentials.Moderator.UpdatedAt,
	})
	if err != nil {
		return application.Moderator{}, err
	}
	return toApplicationModerator(stored), nil
}

func (a *moderatorStoreAdapter) GetModeratorCredentialsByEmail(ctx context.Context, email string) (application.ModeratorCredentials, error) {
	stored, err := a.repo.GetModeratorByEmail(ctx, email)
	if err != nil {
		return application.ModeratorCredentials{}, err
	}
	return application.ModeratorCredentials{
		Moderator:    toApplicationModerator(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *moderatorStoreAdapter) GetModerator(ctx context.Context, id string) (application.Moderator, error) {
	stored, err := a.repo.GetModerator(ctx, id)
	if err != nil {
		return application.Moderator{}, err
	}
	return toApplicationModerator(stored), nil
}

// ListModeratorIDs lists every enabled moderator for inbox fan-out.
func (a *moderatorStoreAdapter) ListModeratorIDs(ctx context.Context) ([]string, error) {
	moderators, err := a.repo.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(moderators))
	for _, moderator := range moderators {
		if !moderator.Disabled {
			ids = append(ids, moderator.ID)
		}
	}
	return ids, nil
}

type notificationStoreAdapter struct {
	repo persistence.NotificationRepository
}

func newNotificationStoreAdapter(repo persistence.NotificationRepository) *notificationStoreAdapter {
	return &notificationStoreAdapter{repo: repo}
}

func (a *notificationStoreAdapter) CreateNotification(ctx context.Context, notification application.InboxNotification) (application.InboxNotification, error) {
	stored, err := a.repo.CreateNotification(ctx, persistence.Notification{
		ID:         notification.ID,
		Recipient:  notification.Recipient,
		Kind:       string(notification.Kind),
		EventID:    notification.EventID,
		EventTitle: notification.EventTitle,
		Title:      notification.Title,
		Message:    notification.Message,
		ReadAt:     cloneTime(notification.ReadAt),
		CreatedAt:  notification.CreatedAt,
	})
	if err != nil {
		return application.InboxNotification{}, err
	}
	return toApplicationNotification(stored), nil
}

func (a *notificationStoreAdapter) ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]application.InboxNotification, error) {
	models, err := a.repo.ListNotifications(ctx, recipient, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	notifications := make([]application.InboxNotification, 0, len(models))
	for _, model := range models {
		notifications = append(notifications, toApplicationNotification(model))
	}
	return notifications, nil
}

func (a *notificationStoreAdapter) CountUnreadNotifications(ctx context.Context, recipient string) (int, error) {
	return a.repo.CountUnreadNotifications(ctx, recipient)
}

func (a *notificationStoreAdapter) SetNotificationRead(ctx context.Context, recipient, id string, readAt *time.Time) (application.InboxNotification, error) {
	stored, err := a.repo.SetNotificationRead(ctx, recipient, id, readAt)
	if err != nil {
		return application.InboxNotification{}, err
	}
	return toApplicationNotification(stored), nil
}

func (a *notificationStoreAdapter) DeleteNotification(ctx context.Context, recipient, id string) error {
	return a.repo.DeleteNotification(ctx, recipient, id)
}

func (a *notificationStoreAdapter) DeleteNotifications(ctx context.Context, recipient string) (int, error) {
	return a.repo.DeleteNotifications(ctx, recipient)
}

func (a *notificationStoreAdapter) GetNotificationPreferences(ctx context.Context, recipient string) (application.NotificationPreferences, error) {
	stored, err := a.repo.GetNotificationPreferences(ctx, recipient)
	if err != nil {
		return application.NotificationPreferences{}, err
	}
	return toApplicationPreferences(stored), nil
}

func (a *notificationStoreAdapter) SaveNotificationPreferences(ctx context.Context, recipient string, preferences application.NotificationPreferences) (application.NotificationPreferences, error) {
	kinds := make([]string, 0, len(preferences.DisabledKinds))
	for _, kind := range preferences.DisabledKinds {
		kinds = append(kinds, string(kind))
	}
	stored, err := a.repo.SaveNotificationPreferences(ctx, persistence.NotificationPreferences{
		Recipient:     recipient,
		InApp:         preferences.InApp,
		DisabledKinds: kinds,
		UpdatedAt:     preferences.UpdatedAt,
	})
	if err != nil {
		return application.NotificationPreferences{}, err
	}
	return toApplicationPreferences(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.Session{
		ID:          session.ID,
		ModeratorID: session.ModeratorID,
		Token:       session.Token,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	})
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationEvent(model persistence.Event) application.Event {
	reason := ""
	if model.RejectionReason != nil {
		reason = *model.RejectionReason
	}
	return application.Event{
		ID:          model.ID,
		Title:       model.Title,
		Category:    model.Category,
		Description: model.Description,
		Date:        model.Date,
		Time:        model.Time,
		Location:    model.Location,
		Organizer: application.Organizer{
			Name:  model.OrganizerName,
			Email: model.OrganizerEmail,
			Phone: model.OrganizerPhone,
		},
		Status:          application.EventStatus(model.Status),
		RejectionReason: reason,
		AttendeeCount:   model.AttendeeCount,
		ManageToken:     model.ManageToken,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	var reason *string
	if event.RejectionReason != "" {
		reason = cloneString(&event.RejectionReason)
	}
	return persistence.Event{
		ID:              event.ID,
		Title:           event.Title,
		Category:        event.Category,
		Description:     event.Description,
		Date:            event.Date,
		Time:            event.Time,
		Location:        event.Location,
		OrganizerName:   event.Organizer.Name,
		OrganizerEmail:  event.Organizer.Email,
		OrganizerPhone:  event.Organizer.Phone,
		Status:          string(event.Status),
		RejectionReason: reason,
		AttendeeCount:   event.AttendeeCount,
		ManageToken:     event.ManageToken,
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.UpdatedAt,
	}
}

func toApplicationRSVP(model persistence.RSVP) application.RSVP {
	return application.RSVP{
		ID:      model.ID,
		EventID: model.EventID,
		Attendee: application.Attendee{
			Name:  model.Name,
			Email: model.Email,
			Phone: model.Phone,
		},
		UserID:    model.UserID,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
	}
}

func toApplicationRSVPs(models []persistence.RSVP, err error) ([]application.RSVP, error) {
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rsvps := make([]application.RSVP, 0, len(models))
	for _, model := range models {
		rsvps = append(rsvps, toApplicationRSVP(model))
	}
	return rsvps, nil
}

func toApplicationModerator(model persistence.Moderator) application.Moderator {
	return application.Moderator{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		ModeratorID: model.ModeratorID,
		Token:       model.Token,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toApplicationNotification(model persistence.Notification) application.InboxNotification {
	return application.InboxNotification{
		ID:         model.ID,
		Recipient:  model.Recipient,
		Kind:       application.NotificationKind(model.Kind),
		EventID:    model.EventID,
		EventTitle: model.EventTitle,
		Title:      model.Title,
		Message:    model.Message,
		ReadAt:     cloneTime(model.ReadAt),
		CreatedAt:  model.CreatedAt,
	}
}

func toApplicationPreferences(model persistence.NotificationPreferences) application.NotificationPreferences {
	preferences := application.NotificationPreferences{InApp: model.InApp, UpdatedAt: model.UpdatedAt}
	for _, kind := range model.DisabledKinds {
		preferences.DisabledKinds = append(preferences.DisabledKinds, application.NotificationKind(kind))
	}
	return preferences
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
