package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ChatHandler handles direct messages. Messages live in MongoDB and are
// pushed live to the receiver; they are not persisted as notifications.
type ChatHandler struct {
	messageRepository repositories.MessageRepository
	userRepository    repositories.UserRepository
	broker            *broker.Broker
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, b *broker.Broker) *ChatHandler {
	return &ChatHandler{
		messageRepository: messageRepo,
		userRepository:    userRepo,
		broker:            b,
	}
}

// RegisterChatRoutes registers chat routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats/:user_id/messages", h.SendMessage)
	g.GET("/chats/:user_id/messages", h.GetMessages)
	g.PUT("/chats/:user_id/read", h.MarkRead)
}

// SendMessage stores a message to :user_id and pushes it to their live
// connections
func (h *ChatHandler) SendMessage(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	receiverID, err := parseIDParam(c, "user_id", "user")
	if err != nil {
		return err
	}
	if receiverID == currentUserID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot message yourself")
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sender, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return respondError(c, err, "User not found")
	}
	if _, err := h.userRepository.GetUserByID(receiverID); err != nil {
		return respondError(c, err, "User not found")
	}

	message := &models.Message{
		SenderID:   currentUserID,
		ReceiverID: receiverID,
		Text:       req.Text,
	}
	if err := h.messageRepository.CreateMessage(c.Request().Context(), message); err != nil {
		return respondError(c, err, "")
	}

	payload := broker.NewPayload(models.NotificationTypeMessage, message.Text, sender, message.CreatedAt)
	payload.Data = map[string]string{"message_id": message.ID.Hex()}
	h.broker.Publish(receiverID, payload)

	return success(c, http.StatusCreated, message)
}

// GetMessages pages backwards through the conversation with :user_id.
// Pass ?before=<RFC3339> to fetch older messages.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	otherID, err := parseIDParam(c, "user_id", "user")
	if err != nil {
		return err
	}

	before := time.Now().UTC()
	if raw := c.QueryParam("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid before timestamp")
		}
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	messages, err := h.messageRepository.GetConversation(c.Request().Context(), currentUserID, otherID, before, int64(limit))
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"messages": messages})
}

// MarkRead marks every message :user_id sent to the caller as read
func (h *ChatHandler) MarkRead(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	otherID, err := parseIDParam(c, "user_id", "user")
	if err != nil {
		return err
	}

	updated, err := h.messageRepository.MarkConversationRead(c.Request().Context(), currentUserID, otherID)
	if err != nil {
		return respondError(c, err, "")
	}
	return success(c, http.StatusOK, echo.Map{"updated": updated})
}
