package router

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/handlers"
	"github.com/anonto42/connect-hub/backend/internal/middleware"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/services"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/anonto42/connect-hub/backend/internal/validators"
	"github.com/anonto42/connect-hub/backend/pkg/config"
	"github.com/anonto42/connect-hub/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Deps are the external resources the routes are built on. FirebaseAuth and
// Redis are optional.
type Deps struct {
	Config       *config.Config
	Postgres     *gorm.DB
	Mongo        *mongo.Client
	FirebaseAuth *auth.Client
	Redis        *redis.Client
}

// App exposes the long-running components main needs to start and stop
type App struct {
	Engine     *toggle.Engine
	Broker     *broker.Broker
	Reconciler *toggle.Reconciler
}

// Migrate creates or updates the PostgreSQL schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Project{},
		&models.Follow{},
		&models.Like{},
		&models.CommentLike{},
		&models.ProjectLike{},
		&models.SavedPost{},
		&models.Notification{},
	)
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) (*App, error) {
	if err := Migrate(d.Postgres); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}
	logger.Log.Info("PostgreSQL auto-migrations completed")

	e.Validator = validators.New()

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.Postgres)
	postRepo := repositories.NewPostgresPostRepository(d.Postgres)
	commentRepo := repositories.NewPostgresCommentRepository(d.Postgres)
	projectRepo := repositories.NewPostgresProjectRepository(d.Postgres)
	likeRepo := repositories.NewPostgresLikeRepository(d.Postgres)
	commentLikeRepo := repositories.NewPostgresCommentLikeRepository(d.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(d.Postgres)
	savedPostRepo := repositories.NewPostgresSavedPostRepository(d.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(d.Postgres)
	relationRepo := repositories.NewPostgresRelationRepository(d.Postgres)
	messageRepo := repositories.NewMongoMessageRepository(d.Mongo.Database(d.Config.MongoDatabase))

	// --- Core components ---
	engine := toggle.NewEngine(relationRepo,
		toggle.WithLockWait(d.Config.ToggleLockWait),
		toggle.WithRecount(repositories.CommentsCountRecount, commentRepo.RecountComments),
	)

	brokerOpts := []broker.Option{broker.WithBufferSize(d.Config.SubscriberBuffer)}
	if d.Redis != nil {
		brokerOpts = append(brokerOpts, broker.WithRelay(broker.NewRedisRelay(d.Redis, broker.DefaultRelayChannel)))
	}
	b := broker.NewBroker(notificationRepo, userRepo, brokerOpts...)

	notifier := services.NewRelationNotifier(b, userRepo, postRepo, commentRepo, projectRepo)
	engine.AddListener(notifier)

	reconciler, err := toggle.NewReconciler(engine, d.Config.ReconcileSchedule)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid reconcile schedule %q", d.Config.ReconcileSchedule)
	}

	// --- Public routes ---
	e.GET("/health", handlers.NewHealthHandler(d.Postgres, d.Mongo).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Connect Hub API"})
	})

	var (
		verifier middleware.TokenVerifier
		resolver *middleware.FirebaseResolver
	)
	if d.FirebaseAuth != nil {
		verifier = d.FirebaseAuth
		resolver = middleware.NewFirebaseResolver(d.FirebaseAuth, userRepo)
	}

	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(userRepo, verifier, d.Config.JWTSecret).RegisterAuthRoutes(authGroup)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(d.Config.JWTSecret, resolver))

	handlers.NewUserHandler(userRepo, engine).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(engine, followRepo, userRepo).RegisterFollowRoutes(api)
	handlers.NewPostHandler(postRepo, userRepo, likeRepo, savedPostRepo).RegisterPostRoutes(api)
	handlers.NewFeedHandler(postRepo, userRepo, followRepo, likeRepo, savedPostRepo).RegisterFeedRoutes(api)
	handlers.NewLikeHandler(engine, likeRepo, userRepo).RegisterLikeRoutes(api)
	handlers.NewSavedPostHandler(engine, savedPostRepo).RegisterSavedPostRoutes(api)
	handlers.NewCommentHandler(commentRepo, commentLikeRepo, userRepo, engine, notifier).RegisterCommentRoutes(api)
	handlers.NewProjectHandler(projectRepo, engine).RegisterProjectRoutes(api)
	handlers.NewSearchHandler(userRepo, postRepo, projectRepo).RegisterSearchRoutes(api)
	handlers.NewNotificationHandler(b, userRepo).RegisterNotificationRoutes(api)
	handlers.NewChatHandler(messageRepo, userRepo, b).RegisterChatRoutes(api)

	logger.Log.Info("All routes configured")
	return &App{Engine: engine, Broker: b, Reconciler: reconciler}, nil
}
