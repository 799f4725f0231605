// Пакет server - HTTP-сервер data-query с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/LadnoSam/data-query-lib/internal/api/handlers"
	"github.com/LadnoSam/data-query-lib/internal/api/middleware"
	"github.com/LadnoSam/data-query-lib/internal/config"
)

// Server - HTTP-сервер data-query.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// middlewares добавляются после RequestID в порядке переданного среза, перед Recover.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h *handlers.Handler,
	health *handlers.HealthHandler,
	middlewares ...func(http.Handler) http.Handler,
) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(logger, h, health, middlewares...),
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// NewRouter регистрирует маршруты data-query.
// Recover подключается последним, чтобы логирование и метрики видели 500 после паники.
func NewRouter(
	logger *slog.Logger,
	h *handlers.Handler,
	health *handlers.HealthHandler,
	middlewares ...func(http.Handler) http.Handler,
) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	for _, mw := range middlewares {
		router.Use(mw)
	}
	router.Use(middleware.Recover(logger))

	router.Get("/", h.Index)
	router.Get("/submit", h.Submit)
	router.Post("/submit", h.Submit)
	if h.CanIngest() {
		router.Post("/api/v1/ingest", h.TriggerIngest)
	}

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	return router
}

// Run запускает сервер и блокируется до отмены ctx.
// При отмене выполняется graceful shutdown с таймаутом DQ_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
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

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
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
