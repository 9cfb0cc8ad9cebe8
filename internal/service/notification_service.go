package service

import (
	"context"
	"errors"

	"potential/internal/models"
	"potential/internal/notifications"
	"potential/internal/repository"

	"gorm.io/gorm"
)

// notificationPusher creates a notification row and delivers it to its
// user's realtime channel. Satisfied by *NotificationService; held as a
// narrow interface so services can be tested with stubs.
type notificationPusher interface {
	Push(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	repo   repository.NotificationRepository
	events notifications.EventSink
}

func NewNotificationService(repo repository.NotificationRepository, events notifications.EventSink) *NotificationService {
	return &NotificationService{repo: repo, events: events}
}

// Push persists a notification and publishes it on the owner's channel.
func (s *NotificationService) Push(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if ev, err := notifications.NewChangeEvent(
		notifications.EventInsert, notifications.TableNotifications,
		n, nil, "", n.Version()); err == nil {
		notifications.PublishUser(ctx, s.events, n.UserID, ev)
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one notification read and pushes the updated row so the
// user's other devices converge.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Notification", id)
		}
		return nil, err
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev, err := notifications.NewChangeEvent(
		notifications.EventUpdate, notifications.TableNotifications,
		n, nil, "", n.Version()); err == nil {
		notifications.PublishUser(ctx, s.events, userID, ev)
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}
