package handlers

import (
	"net/http"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	broker         *broker.Broker
	userRepository repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(b *broker.Broker, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		broker:         b,
		userRepository: userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/ws", h.ServeWebSocket)
	g.GET("/notifications/stream", h.ServeStream)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor models.UserCompact `json:"actor"`
}

func (h *NotificationHandler) enrichNotifications(notifications []models.Notification) ([]EnrichedNotification, error) {
	ids := make([]uint, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ActorID)
	}
	actors, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedNotification, len(notifications))
	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if actor, ok := actors[n.ActorID]; ok {
			enriched[i].Actor = actor.ToCompact()
		}
	}
	return enriched, nil
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20)

	notifications, total, err := h.broker.List(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return respondError(c, err, "")
	}

	enriched, err := h.enrichNotifications(notifications)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"notifications": enriched},
		"meta":    paginationMeta(page, limit, total),
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	grouped, err := h.broker.ListGrouped(ctx, currentUserID)
	if err != nil {
		return respondError(c, err, "")
	}
	unreadCount, err := h.broker.UnreadCount(ctx, currentUserID)
	if err != nil {
		return respondError(c, err, "")
	}

	buckets := echo.Map{}
	for name, items := range map[string][]models.Notification{
		"today":     grouped.Today,
		"yesterday": grouped.Yesterday,
		"thisWeek":  grouped.ThisWeek,
		"older":     grouped.Older,
	} {
		enriched, err := h.enrichNotifications(items)
		if err != nil {
			return respondError(c, err, "")
		}
		buckets[name] = enriched
	}

	return success(c, http.StatusOK, echo.Map{
		"notifications": buckets,
		"unreadCount":   unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	count, err := h.broker.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	notificationID, err := parseIDParam(c, "id", "notification")
	if err != nil {
		return err
	}

	notification, err := h.broker.MarkRead(c.Request().Context(), notificationID, currentUserID)
	if err != nil {
		return respondError(c, err, "Notification not found")
	}
	return success(c, http.StatusOK, notification)
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	updated, err := h.broker.MarkAllRead(c.Request().Context(), currentUserID)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"updated": updated})
}
