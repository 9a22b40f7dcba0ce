// Пакет server — HTTP-сервер файлового хостинга с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/api/handlers"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/api/middleware"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
)

// Server — HTTP-сервер файлового хостинга.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	limiter *middleware.RateLimiter,
	auth *middleware.SecretAuth,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, api, limiter, auth),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter строит таблицу маршрутов.
//
//	GET  /health, /health/ready, /metrics  — без ограничений
//	POST /upload, DELETE /delete/{id},
//	POST /maintenance/{sweep,reconcile}    — лимит частоты + секрет
//	GET, HEAD /{filename}                  — лимит частоты
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	limiter *middleware.RateLimiter,
	auth *middleware.SecretAuth,
) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	if cfg.TrustProxy {
		router.Use(chimw.RealIP)
	}
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())

	router.Get("/health", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	router.Group(func(r chi.Router) {
		r.Use(limiter.Middleware())

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())
			r.Post("/upload", api.UploadFile)
			r.Delete("/delete/{id}", api.DeleteFile)
			r.Post("/maintenance/sweep", api.Sweep)
			r.Post("/maintenance/reconcile", api.Reconcile)
		})

		r.Get("/{filename}", api.GetFile)
		r.Head("/{filename}", api.GetFile)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с таймаутом FH_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст отменён, остановка сервера")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
