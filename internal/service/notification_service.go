package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

// InboxLimit is how many notifications a user keeps.
const InboxLimit = 50

type NotificationService struct {
	log           *slog.Logger
	users         *repository.UserRepository
	notifications *repository.NotificationRepository
}

func NewNotificationService(log *slog.Logger, users *repository.UserRepository, notifications *repository.NotificationRepository) *NotificationService {
	return &NotificationService{log: log, users: users, notifications: notifications}
}

// Notify delivers n unless the user's settings mute its type. A muted
// notification returns nil, nil.
func (s *NotificationService) Notify(ctx context.Context, userID int64, n models.Notification) (*models.Notification, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	if !user.Settings.Allows(n.Type) {
		s.log.Debug("notification muted by settings", "user_id", userID, "type", n.Type)
		return nil, nil
	}
	n.UserID = userID
	if err := s.notifications.Create(ctx, &n, InboxLimit); err != nil {
		return nil, fmt.Errorf("notify user %d: %w", userID, err)
	}
	return &n, nil
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, InboxLimit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Settings(ctx context.Context, userID int64) (models.NotificationSettings, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.NotificationSettings{}, err
	}
	if user == nil {
		return models.NotificationSettings{}, repository.ErrUserNotFound
	}
	return user.Settings, nil
}

func (s *NotificationService) UpdateSettings(ctx context.Context, userID int64, settings models.NotificationSettings) error {
	return s.users.UpdateSettings(ctx, userID, settings)
}
