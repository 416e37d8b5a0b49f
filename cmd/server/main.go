package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/assist"
	"github.com/SAP-F-2025/quiz-engine/internal/auth"
	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/config"
	"github.com/SAP-F-2025/quiz-engine/internal/handlers"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-engine/internal/scoring"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/session"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/SAP-F-2025/quiz-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var appLogger utils.Logger
	if cfg.Environment == "production" {
		appLogger = utils.NewDefaultLogger()
	} else {
		appLogger = utils.NewDevelopmentLogger()
	}
	logger := utils.ToSlogLogger(appLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.Quiz{},
		&models.Question{},
		&models.QuizAttempt{},
		&models.AssistEntry{},
		&models.IntegrityEvent{},
	); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	var cacheService cache.CacheService = cache.NoopCache{}
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, snapshots will be read from the attempt record", "error", err)
	} else {
		cacheService = cache.NewRedisCache(redisClient, logger)
		defer redisClient.Close()
	}

	eventCfg := config.LoadEventConfig()
	publisher, err := eventCfg.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	validator := utils.NewValidator()

	var provider assist.TextProvider
	if cfg.AssistEndpoint != "" {
		provider = assist.NewHTTPProvider(assist.HTTPProviderConfig{
			Endpoint: cfg.AssistEndpoint,
			Model:    cfg.AssistModel,
			APIKey:   cfg.AssistAPIKey,
			Timeout:  cfg.AssistTimeout,
		})
	} else {
		logger.Warn("No assist endpoint configured, hints and explanations use fallback text")
		provider = &assist.MockProvider{Err: assist.ErrProviderUnavailable}
	}
	assists := assist.NewService(repo.Assist(), provider, logger)

	var roles auth.RoleResolver
	if cfg.CasdoorEndpoint != "" {
		roles = auth.NewCasdoorResolver(auth.CasdoorConfig{
			Endpoint:         cfg.CasdoorEndpoint,
			ClientID:         cfg.CasdoorClientID,
			ClientSecret:     cfg.CasdoorClientSecret,
			Certificate:      cfg.CasdoorCertificate,
			OrganizationName: cfg.CasdoorOrganization,
			ApplicationName:  cfg.CasdoorApplication,
		})
	} else {
		logger.Warn("No Casdoor endpoint configured, all users are treated as students")
		roles = &auth.StaticResolver{Default: models.RoleStudent}
	}

	manager := session.NewManager(
		repo,
		scoring.NewEngine(),
		assists,
		publisher,
		cacheService,
		roles,
		logger,
		session.WithAutoSubmitDelay(time.Duration(cfg.IntegrityGraceSeconds)*time.Second),
	)
	results := services.NewResultsService(repo, assists, roles, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(appLogger))
	router.Use(utils.ContextLogger(appLogger))

	handlerManager := handlers.NewHandlerManager(manager, results, repo, assists, roles, validator, appLogger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting quiz engine", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Active sessions are force-submitted so no attempt stays dangling.
	manager.Close(ctx)

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
