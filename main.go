package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habitSocialAPI/handlers"
	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/config"
	pushnotif "habitSocialAPI/internal/notification"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/middleware"
	"habitSocialAPI/services"
	"habitSocialAPI/utils"

	_ "net/http/pprof"
)

var (
	cfg                 *config.Config
	logger              *zap.Logger
	dbPool              *pgxpool.Pool
	redisClient         *redis.Client
	userService         *services.UserService
	activityService     *services.ActivityService
	challengeService    *services.ChallengeService
	friendService       *services.FriendService
	notificationService *services.NotificationService
)

func init() {
	var err error
	logger = utils.InitLogger("habitsocial-api")

	cfg, err = config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.RequireServer(); err != nil {
		logger.Fatal("Missing configuration", zap.Error(err))
	}

	clerk.SetKey(cfg.ClerkSecretKey)
	logger.Info("Clerk initialized successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", zap.Error(err))
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	logger.Info("Successfully connected to database")

	var statsCache cache.Cache[stats.UserStatistics] = cache.NewMemoryCache[stats.UserStatistics]()
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory stats cache", zap.Error(err))
		} else {
			statsCache = cache.NewRedisCache[stats.UserStatistics](redisClient, "stats:")
			logger.Info("Redis stats cache initialized")
		}
	}

	var provider pushnotif.PushProvider = pushnotif.LogProvider{Logger: logger}
	fcmService, err := pushnotif.NewFCMService(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		logger.Warn("Could not initialize FCM, pushes will only be logged", zap.Error(err))
	} else {
		provider = fcmService
		logger.Info("FCM Push Provider initialized successfully")
	}

	notificationService = services.NewNotificationService(dbPool, provider, cfg.NotificationWorkers, logger)
	userService = services.NewUserService(dbPool, statsCache, cfg.StatsCacheTTL, logger)
	activityService = services.NewActivityService(dbPool, logger)
	challengeService = services.NewChallengeService(dbPool, activityService, userService, logger)
	friendService = services.NewFriendService(dbPool, activityService, userService, notificationService, logger)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		logger.Info("Closing database connection pool...")
		dbPool.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webhookHandler, err := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
	if err != nil {
		logger.Fatal("Invalid webhook secret", zap.Error(err))
	}
	if cfg.ClerkWebhookSecret == "" {
		logger.Warn("CLERK_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	api := handlers.API{
		Challenges:    handlers.NewChallengeHandler(challengeService),
		Friends:       handlers.NewFriendHandler(friendService),
		Users:         handlers.NewUserHandler(userService),
		Activities:    handlers.NewActivityHandler(activityService),
		Notifications: handlers.NewNotificationHandler(notificationService),
	}

	r := mux.NewRouter()
	standardRouter := r.PathPrefix("/").Subrouter()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.CleanupVisitors(ctx)

	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habitsocial-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	protected := standardRouter.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(userService))
	api.Register(protected)

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	notificationService.Stop()

	logger.Info("Server shutdown complete")
}
