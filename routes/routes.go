package routes

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/arcade-tournaments/handlers"
	"github.com/Dosada05/arcade-tournaments/metrics"
	"github.com/Dosada05/arcade-tournaments/middleware"
)

//go:embed openapi.json
var openAPIDoc []byte

type Handlers struct {
	Auth        *handlers.AuthHandler
	Tournament  *handlers.TournamentHandler
	Score       *handlers.ScoreHandler
	Achievement *handlers.AchievementHandler
	Webhook     *handlers.WebhookHandler
	WebSocket   *handlers.WebSocketHandler
	Health      *handlers.HealthHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// SubmitLimiter may be nil, which disables rate limiting.
	SubmitLimiter *middleware.RateLimiter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Logging(opts.Logger))
	router.Use(middleware.Metrics(opts.Metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Link", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.Authenticate(opts.JWTSecret))

	router.Get("/healthz", h.Health.Healthz)
	router.Handle("/metrics", opts.Metrics.Handler())

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPIDoc)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
		})
		r.With(middleware.RequireAuth).Get("/me", h.Auth.Me)

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListHandler)
			r.With(middleware.RequireAuth).Post("/", h.Tournament.CreateHandler)
			r.Get("/by-slug/{slug}", h.Tournament.GetBySlugHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				// Публичные маршруты (видимость проверяет сервис)
				r.Get("/", h.Tournament.GetByIDHandler)
				r.Get("/games", h.Tournament.ListGamesHandler)
				r.Get("/games/{gameID}/scores", h.Score.GameScoresHandler)
				r.Get("/leaderboard", h.Score.LeaderboardHandler)
				r.Get("/players/{playerName}/stats", h.Score.PlayerStatsHandler)
				r.Get("/players/{playerName}/achievements", h.Achievement.PlayerAchievementsHandler)
				r.Get("/achievements", h.Achievement.ListHandler)
				r.Get("/achievements/recent", h.Achievement.RecentHandler)

				// Отправка очков доступна и анонимно, но с ограничением частоты
				r.With(opts.SubmitLimiter.Handler).Post("/scores", h.Score.SubmitHandler)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAuth)

					r.Put("/", h.Tournament.UpdateHandler)
					r.Put("/lock", h.Tournament.SetLockHandler)
					r.Delete("/", h.Tournament.DeleteHandler)

					r.Post("/games", h.Tournament.AddGameHandler)
					r.Delete("/games/{gameID}", h.Tournament.DeleteGameHandler)

					r.Delete("/players/{playerName}/achievements", h.Achievement.ResetPlayerHandler)

					r.Post("/achievements", h.Achievement.CreateHandler)
					r.Put("/achievements/{achievementID}", h.Achievement.UpdateHandler)
					r.Delete("/achievements/{achievementID}", h.Achievement.DeleteHandler)
					r.Post("/achievements/{achievementID}/icon", h.Achievement.UploadIconHandler)
				})
			})
		})

		r.With(middleware.RequireAuth).Post("/webhooks/relay", h.Webhook.RelayHandler)
	})
}
