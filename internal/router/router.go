package router

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anonto42/campus-connect/backend/internal/handlers"
	"github.com/anonto42/campus-connect/backend/internal/middleware"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	"github.com/anonto42/campus-connect/backend/internal/services"
	"github.com/anonto42/campus-connect/backend/pkg/config"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

// redisChannelPrefix namespaces the change feed channels
const redisChannelPrefix = "campusconnect:"

// Services is the wired service graph shared by the HTTP and websocket handlers
type Services struct {
	Users         *services.UserService
	Connections   *services.ConnectionService
	Conversations *services.ConversationService
	Presence      *services.PresenceService
	Notifications *services.NotificationService
}

// NewServices migrates the schema and builds repositories, the event bus and services
func NewServices(ctx context.Context, cfg *config.Config, db *config.DB) (*Services, error) {
	if err := db.Postgres.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("PostgreSQL auto-migrations completed")

	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	connectionRepo := repositories.NewPostgresConnectionRepository(db.Postgres)
	messageRepo := repositories.NewPostgresMessageRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)

	var typingRepo repositories.TypingRepository = repositories.NewPostgresTypingRepository(db.Postgres)
	if cfg.TypingStore == config.TypingStoreMongo {
		if db.Mongo == nil {
			return nil, fmt.Errorf("typing store is mongo but no MongoDB connection is open")
		}
		mongoRepo := repositories.NewMongoTypingRepository(db.Mongo.Database(cfg.MongoDatabase))
		if err := mongoRepo.EnsureIndexes(ctx, cfg.TypingRetention); err != nil {
			return nil, fmt.Errorf("failed to create typing indexes: %w", err)
		}
		typingRepo = mongoRepo
	}

	var (
		feed   realtime.Feed
		locker services.Locker
	)
	if db.Redis != nil {
		feed = realtime.NewRedisFeed(db.Redis, redisChannelPrefix)
		locker = services.NewRedisLocker(db.Redis)
		logger.Info("Using Redis change feed and locks")
	} else {
		feed = realtime.NewMemoryFeed()
		locker = services.NewLocalLocker()
		logger.Info("Using in-process change feed and locks")
	}
	bus := realtime.NewBus(feed)

	connections := services.NewConnectionService(connectionRepo, userRepo, locker, bus, cfg.SearchLimit)
	presence := services.NewPresenceService(typingRepo, bus, cfg.TypingDebounce, cfg.TypingTTL)
	conversations := services.NewConversationService(messageRepo, connections, presence, bus)
	notifications := services.NewNotificationService(notificationRepo, userRepo, connectionRepo, connections, locker, bus)
	bus.Observe(notifications)

	return &Services{
		Users:         services.NewUserService(userRepo),
		Connections:   connections,
		Conversations: conversations,
		Presence:      presence,
		Notifications: notifications,
	}, nil
}

// SetupRoutes registers every route. verifier may be nil, in which case local JWTs are used.
// Live sessions are bound to ctx; the returned handler drains them on shutdown.
func SetupRoutes(ctx context.Context, e *echo.Echo, cfg *config.Config, db *config.DB, svc *Services, verifier middleware.TokenVerifier) *handlers.LiveHandler {
	e.GET("/health", handlers.NewHealthHandler(healthChecks(db)).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "campus-connect realtime API"})
	})

	api := e.Group("/api/v1")
	if verifier != nil {
		api.Use(middleware.FirebaseAuthMiddleware(verifier, svc.Users))
		logger.Info("Firebase authentication applied to /api/v1")
	} else {
		api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, svc.Users))
		logger.Info("JWT authentication applied to /api/v1")
	}

	handlers.NewUserHandler(svc.Users, svc.Connections).RegisterUserRoutes(api)
	handlers.NewConnectionHandler(svc.Connections).RegisterConnectionRoutes(api)
	handlers.NewConversationHandler(svc.Conversations, svc.Presence).RegisterConversationRoutes(api)
	handlers.NewNotificationHandler(svc.Notifications, svc.Users).RegisterNotificationRoutes(api)
	live := handlers.NewLiveHandler(ctx, svc.Conversations, svc.Presence, svc.Notifications, svc.Connections)
	live.RegisterLiveRoutes(api)

	logger.Info("All routes configured")
	return live
}

func healthChecks(db *config.DB) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"postgres": handlers.PingerFunc(func(ctx context.Context) error {
			sqlDB, err := db.Postgres.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if db.Mongo != nil {
		checks["mongo"] = handlers.PingerFunc(func(ctx context.Context) error {
			return db.Mongo.Ping(ctx, nil)
		})
	}
	if db.Redis != nil {
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return db.Redis.Ping(ctx).Err()
		})
	}
	return checks
}
