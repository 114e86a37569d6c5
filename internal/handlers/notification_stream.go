package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	pingPeriod    = 30 * time.Second
	sseRetryAfter = 3000 // milliseconds
)

// ServeWebSocket upgrades the request and streams the caller's live
// notifications until either side closes the connection.
func (h *NotificationHandler) ServeWebSocket(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Uint("user_id", currentUserID), zap.Error(err))
		return nil
	}
	defer conn.CloseNow()

	sub := h.broker.Subscribe(currentUserID)
	defer sub.Close()

	// clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away
	ctx := conn.CloseRead(c.Request().Context())

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case payload, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return nil
			}
			data, err := json.Marshal(payload)
			if err != nil {
				logger.Log.Error("failed to encode notification", zap.Error(err))
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Log.Debug("websocket write failed", zap.Uint("user_id", currentUserID), zap.Error(err))
				return nil
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return nil
			}
		}
	}
}

// ServeStream streams the caller's live notifications as server-sent events
func (h *NotificationHandler) ServeStream(c echo.Context) error {
	currentUserID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	sub := h.broker.Subscribe(currentUserID)
	defer sub.Close()

	return streamEvents(c, sub, pingPeriod)
}

func streamEvents(c echo.Context, sub *broker.Subscription, heartbeat time.Duration) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(res, "retry: %d\n\n", sseRetryAfter); err != nil {
		return nil
	}
	res.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case payload, ok := <-sub.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(payload)
			if err != nil {
				logger.Log.Error("failed to encode notification", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", payload.Type, data); err != nil {
				return nil
			}
			res.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
