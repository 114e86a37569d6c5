package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/metrics"
	"github.com/anonto42/connect-hub/backend/internal/router"
	"github.com/anonto42/connect-hub/backend/pkg/config"
	"github.com/anonto42/connect-hub/backend/pkg/firebase"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Social login is optional
	deps := router.Deps{
		Config:   cfg,
		Postgres: db.Postgres,
		Mongo:    db.Mongo,
		Redis:    redisClient,
	}
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logger.Log.Warn("Firebase disabled, social login unavailable", zap.Error(err))
	} else {
		deps.FirebaseAuth = firebaseApp.AuthClient
	}

	e := echo.New()
	e.HideBanner = true
	config.SetupMiddleware(e)

	app, err := router.SetupRoutes(e, deps)
	if err != nil {
		logger.Log.Fatal("Failed to set up routes", zap.Error(err))
	}

	app.Reconciler.Start()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Info("HTTP server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Log.Info("Metrics server starting", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return app.Broker.RunRelay(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// live streams only end once their subscriptions are closed
		app.Broker.CloseAll()
		app.Reconciler.Stop(shutdownCtx)

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("HTTP server shutdown failed", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Metrics server shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
	}
}
