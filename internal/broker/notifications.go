package broker

import (
	"context"
	"errors"
	"strconv"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationOption sets optional fields of a new notification
type NotificationOption func(*models.Notification)

// WithTarget records what the notification is about (a post, comment, ...)
func WithTarget(targetType string, targetID uint) NotificationOption {
	return func(n *models.Notification) {
		n.TargetType = targetType
		n.TargetID = strconv.FormatUint(uint64(targetID), 10)
	}
}

// CreateNotification persists an unread notification. Nothing is pushed live.
func (b *Broker) CreateNotification(ctx context.Context, recipientID, senderID uint, typ, message string, opts ...NotificationOption) (*models.Notification, error) {
	n := &models.Notification{
		Type:        typ,
		ActorID:     senderID,
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   b.now().UTC(),
	}
	for _, opt := range opts {
		opt(n)
	}

	if err := b.notifications.CreateNotification(ctx, n); err != nil {
		return nil, apperrors.Persistence(err, "failed to create notification")
	}
	return n, nil
}

// Notify persists a notification and then publishes it to the recipient's live
// subscribers. The notification is returned even when the sender profile
// cannot be loaded; the payload then carries an empty sender.
func (b *Broker) Notify(ctx context.Context, recipientID, senderID uint, typ, message string, opts ...NotificationOption) (*models.Notification, error) {
	n, err := b.CreateNotification(ctx, recipientID, senderID, typ, message, opts...)
	if err != nil {
		return nil, err
	}

	sender, err := b.users.GetUserByID(senderID)
	if err != nil {
		logger.Log.Warn("failed to load notification sender",
			zap.Uint("sender_id", senderID),
			zap.Error(err),
		)
		sender = nil
	}

	payload := NewPayload(typ, message, sender, n.CreatedAt)
	payload.NotificationID = n.ID
	b.Publish(recipientID, payload)
	return n, nil
}

// MarkRead marks a notification read on behalf of requesterID. Marking an
// already read notification is a no-op.
func (b *Broker) MarkRead(ctx context.Context, notificationID, requesterID uint) (*models.Notification, error) {
	n, err := b.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Notification")
		}
		return nil, apperrors.Persistence(err, "failed to load notification")
	}

	if n.RecipientID != requesterID {
		return nil, apperrors.Forbidden("Cannot modify another user's notification")
	}
	if n.IsRead {
		return n, nil
	}

	if err := b.notifications.MarkAsRead(ctx, notificationID); err != nil {
		return nil, apperrors.Persistence(err, "failed to mark notification as read")
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead marks every unread notification of recipientID and returns how
// many changed.
func (b *Broker) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	updated, err := b.notifications.MarkAllAsRead(ctx, recipientID)
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to mark notifications as read")
	}
	return updated, nil
}

// List returns a page of notifications, newest first, with the total count
func (b *Broker) List(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	items, total, err := b.notifications.GetByRecipientID(ctx, recipientID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Persistence(err, "failed to fetch notifications")
	}
	return items, total, nil
}

// Grouped is a recipient's notifications bucketed by age
type Grouped struct {
	Today     []models.Notification `json:"today"`
	Yesterday []models.Notification `json:"yesterday"`
	ThisWeek  []models.Notification `json:"this_week"`
	Older     []models.Notification `json:"older"`
}

func (b *Broker) ListGrouped(ctx context.Context, recipientID uint) (*Grouped, error) {
	today, yesterday, thisWeek, older, err := b.notifications.GetGrouped(ctx, recipientID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to fetch notifications")
	}
	return &Grouped{Today: today, Yesterday: yesterday, ThisWeek: thisWeek, Older: older}, nil
}

func (b *Broker) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	count, err := b.notifications.GetUnreadCount(ctx, recipientID)
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to count notifications")
	}
	return count, nil
}
