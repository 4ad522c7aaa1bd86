package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/arcade-tournaments/config"
	"github.com/Dosada05/arcade-tournaments/db"
	"github.com/Dosada05/arcade-tournaments/handlers"
	"github.com/Dosada05/arcade-tournaments/live"
	"github.com/Dosada05/arcade-tournaments/logging"
	"github.com/Dosada05/arcade-tournaments/metrics"
	"github.com/Dosada05/arcade-tournaments/middleware"
	"github.com/Dosada05/arcade-tournaments/notifications"
	"github.com/Dosada05/arcade-tournaments/repositories"
	api "github.com/Dosada05/arcade-tournaments/routes"
	"github.com/Dosada05/arcade-tournaments/services"
	"github.com/Dosada05/arcade-tournaments/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Настройка логгера
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("driver", cfg.DatabaseDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn, cfg.DatabaseDriver); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database connection established")

	// Загрузчик иконок (Cloudflare R2) опционален
	var uploader storage.FileUploader
	if cfg.UploadsEnabled() {
		if uploader, err = storage.NewCloudflareR2Uploader(ctx, cfg); err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 settings incomplete, achievement icon uploads disabled")
	}

	m := metrics.New()

	// Инициализация WebSocket Hub
	hub := live.NewHub(logger)
	go hub.Run(ctx)
	logger.Info("WebSocket Hub started")

	relay := notifications.NewRelay(
		notifications.TargetsFromConfig(cfg.Webhooks),
		cfg.Webhooks.Timeout,
		&http.Client{},
		logger,
		m,
	)
	notifier := notifications.NewAsyncNotifier(relay)
	if !relay.Enabled() {
		logger.Info("no chat webhooks configured, notifications disabled")
	}

	// Инициализация репозиториев
	userRepo := repositories.NewUserRepository(dbConn)
	tournamentRepo := repositories.NewTournamentRepository(dbConn)
	gameRepo := repositories.NewGameRepository(dbConn)
	scoreRepo := repositories.NewScoreRepository(dbConn)
	statsRepo := repositories.NewStatsRepository(dbConn)
	achievementRepo := repositories.NewAchievementRepository(dbConn)

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, gameRepo, achievementRepo, m, logger)
	achievementService := services.NewAchievementService(tournamentRepo, achievementRepo, uploader, cfg.RecentAchievementsWindow, logger)
	scoreService := services.NewScoreService(services.ScoreServiceDeps{
		DB:              dbConn,
		TournamentRepo:  tournamentRepo,
		GameRepo:        gameRepo,
		ScoreRepo:       scoreRepo,
		StatsRepo:       statsRepo,
		AchievementRepo: achievementRepo,
		Hub:             hub,
		Notifier:        notifier,
		Metrics:         m,
		Limits:          services.ScoreLimits{Min: cfg.ScoreMin, Max: cfg.ScoreMax},
		Logger:          logger,
	})

	// Планировщик автоблокировки завершенных турниров
	scheduler, err := services.StartLockScheduler(ctx, tournamentService, cfg.AutoLockInterval, logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Tournament:  handlers.NewTournamentHandler(tournamentService),
		Score:       handlers.NewScoreHandler(scoreService),
		Achievement: handlers.NewAchievementHandler(achievementService),
		Webhook:     handlers.NewWebhookHandler(relay),
		WebSocket:   handlers.NewWebSocketHandler(hub, tournamentService, cfg.CORSAllowedOrigins, logger),
		Health:      handlers.NewHealthHandler(dbConn),
	}, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SubmitLimiter:  middleware.NewRateLimiter(cfg.SubmitRatePerMinute),
		Metrics:        m,
		Logger:         logger,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// Дожидаемся отправки уведомлений, ушедших после коммита.
	notifier.Wait()
	logger.Info("application exited")
	return nil
}
