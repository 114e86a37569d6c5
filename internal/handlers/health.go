package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// HealthHandler reports service and dependency status
type HealthHandler struct {
	db    *gorm.DB
	mongo *mongo.Client
}

func NewHealthHandler(db *gorm.DB, mongoClient *mongo.Client) *HealthHandler {
	return &HealthHandler{db: db, mongo: mongoClient}
}

// HealthCheck pings Postgres and MongoDB. It answers 503 when either is down.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"postgres": "ok", "mongo": "ok"}
	status := http.StatusOK

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["postgres"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.mongo != nil {
		if err := h.mongo.Ping(ctx, nil); err != nil {
			checks["mongo"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, echo.Map{
		"status":  state,
		"service": "connect-hub-api",
		"checks":  checks,
	})
}
