// maintenance.go — обработчики POST /maintenance/sweep и /maintenance/reconcile.
// Запускают фоновые процессы синхронно и возвращают результат запуска.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/novaxmd/B.M.B-TECH-URL/internal/api/errors"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/service"
)

// SweepRunner — запуск одного цикла очистки.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*service.SweepResult, error)
}

// ReconcileRunner — запуск одного цикла сверки.
type ReconcileRunner interface {
	RunOnce(ctx context.Context) (*service.ReconcileResult, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	sweeper    SweepRunner
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(sweeper SweepRunner, reconciler ReconcileRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		sweeper:    sweeper,
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "maintenance_handler")),
	}
}

// Sweep обрабатывает POST /maintenance/sweep.
// Если очистка уже выполняется — 409.
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.writeRunError(w, "Очистка", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reconcile обрабатывает POST /maintenance/reconcile.
// Если сверка уже выполняется — 409.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		h.writeRunError(w, "Сверка", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MaintenanceHandler) writeRunError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, service.ErrRunInProgress) {
		apierrors.Conflict(w, name+" уже выполняется")
		return
	}
	h.logger.Error(name+" завершилась ошибкой", slog.String("error", err.Error()))
	apierrors.InternalError(w, "Внутренняя ошибка сервера")
}
