// Пакет server — HTTP-сервер Label Portal с graceful shutdown.
// Без TLS — TLS termination на ingress.
package server

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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/api/handlers"
	"github.com/bigkaa/labelportal/internal/api/middleware"
	"github.com/bigkaa/labelportal/internal/api/openapi"
	"github.com/bigkaa/labelportal/internal/config"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	uihandlers "github.com/bigkaa/labelportal/internal/ui/handlers"
	"github.com/bigkaa/labelportal/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/labelportal/internal/ui/middleware"
	"github.com/bigkaa/labelportal/internal/ui/static"
)

// UIComponents — компоненты веб-интерфейса. nil — UI отключён.
type UIComponents struct {
	Handler *uihandlers.Handler
	Auth    *uimiddleware.UIAuth
}

// Server — HTTP-сервер Label Portal.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт сервер с настроенными маршрутами и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	authn *middleware.Authenticator,
	spec *openapi.Spec,
	ui *UIComponents,
) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, api, authn, spec, ui),
		ReadHeaderTimeout: 10 * time.Second,
		// Загрузка крупных аудиофайлов
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты API, служебные endpoints и UI.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	authn *middleware.Authenticator,
	spec *openapi.Spec,
	ui *UIComponents,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам).
	// RealIP — только за доверенным прокси: иначе X-Forwarded-For задаёт клиент.
	if cfg.TrustProxyHeaders {
		router.Use(chimw.RealIP)
	}
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestMeta)

	// Health и metrics — без аутентификации
	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	authLimiter := loginLimiter(cfg.LoginRateLimit)

	router.Route("/api", func(r chi.Router) {
		r.Use(corsHandler(cfg.CORSOrigins))
		if spec != nil {
			r.Use(spec.Validator(logger))
			r.Get("/openapi.json", spec.ServeHTTP)
		}

		r.With(authLimiter).Post("/auth/register", api.Register)
		r.With(authLimiter).Post("/auth/login", api.Login)

		r.Group(func(r chi.Router) {
			r.Use(authn.Middleware())

			r.Post("/auth/logout", api.Logout)
			r.Get("/auth/me", api.Me)
			r.Post("/auth/token", api.IssueToken)
			r.Put("/auth/password", api.ChangePassword)

			r.Get("/submissions", api.ListSubmissions)
			r.Post("/submissions", api.CreateSubmission)
			r.Get("/submissions/stats", api.SubmissionStats)
			r.Get("/submissions/{id}", api.GetSubmission)
			r.Put("/submissions/{id}", api.UpdateSubmission)
			r.Delete("/submissions/{id}", api.DeleteSubmission)
			r.Post("/submissions/{id}/tracks", api.AddTrack)
			r.Put("/submissions/{id}/tracks/{trackID}", api.UpdateTrack)
			r.Delete("/submissions/{id}/tracks/{trackID}", api.DeleteTrack)
			r.Post("/submissions/{id}/{action}", api.TransitionSubmission)

			r.Get("/artists", api.ListArtists)
			r.Get("/artists/{id}", api.GetArtist)

			r.Put("/users/{id}/profile", api.UpdateProfile)

			r.Post("/uploads", api.Upload)
			r.Get("/files", api.ListFiles)
			r.Get("/files/{id}", api.GetFile)
			r.Get("/files/{id}/download", api.DownloadFile)
			r.Delete("/files/{id}", api.DeleteFile)

			r.Get("/activity", api.ListActivity)

			// Только Label Manager
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(rbac.RoleLabelManager))

				r.Get("/users", api.ListUsers)
				r.Post("/users", api.CreateUser)
				r.Get("/users/{id}", api.GetUser)
				r.Put("/users/{id}", api.UpdateUser)
				r.Delete("/users/{id}", api.DeactivateUser)

				r.Get("/email/settings", api.GetEmailSettings)
				r.Put("/email/settings", api.UpdateEmailSettings)
				r.Post("/email/test", api.SendTestEmail)
				r.Get("/email/logs", api.ListEmailLogs)

				r.Delete("/activity", api.PruneActivity)

				r.Get("/debug/logs", api.ListDebugLogs)
				r.Delete("/debug/logs", api.ClearDebugLogs)
			})
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			apierrors.NotFound(w, "Маршрут не найден")
		})
	})

	if ui != nil {
		mountUI(router, ui, authLimiter)
	}

	return router
}

// mountUI регистрирует страницы веб-интерфейса и статику.
func mountUI(router chi.Router, ui *UIComponents, limiter func(http.Handler) http.Handler) {
	h := ui.Handler

	router.Handle("/static/*", http.StripPrefix("/static/", static.Handler()))

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())

		r.Get("/login", h.LoginPage)
		r.With(limiter).Post("/login", h.LoginSubmit)
		r.Get("/register", h.RegisterPage)
		r.With(limiter).Post("/register", h.RegisterSubmit)
		r.Post("/set-language", h.SetLanguage)

		r.Group(func(r chi.Router) {
			r.Use(ui.Auth.Middleware())

			r.Get("/", h.Dashboard)
			r.Get("/logout", h.Logout)
			r.Post("/logout", h.Logout)

			r.Get("/submissions", h.Submissions)
			r.Get("/submissions/new", h.NewSubmission)
			r.Post("/submissions", h.CreateSubmission)
			r.Get("/submissions/{id}", h.SubmissionDetail)
			r.Post("/submissions/{id}/tracks", h.AddTrack)
			r.Post("/submissions/{id}/{action}", h.TransitionSubmission)

			r.Get("/files", h.Files)
			r.Post("/files", h.UploadFile)
			r.Post("/files/{id}/delete", h.DeleteFile)

			r.Get("/settings", h.Settings)
			r.Post("/settings/profile", h.UpdateProfile)
			r.Post("/settings/password", h.ChangePassword)
			r.Post("/settings/email", h.UpdateEmailSettings)
			r.Post("/settings/email/test", h.SendTestEmail)

			r.Get("/users", h.Users)
			r.Post("/users", h.CreateUser)
			r.Post("/users/{id}/active", h.ToggleUserActive)

			r.Get("/activity", h.Activity)
		})
	})
}

// loginLimiter ограничивает попытки входа и регистрации с одного IP.
func loginLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			apierrors.RateLimited(w, "Слишком много попыток, повторите позже")
		}),
	)
}

// corsHandler — CORS для JSON API. Без origins middleware не ставится.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
