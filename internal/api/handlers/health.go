// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// readyTimeout — ограничение времени проверки индекса.
const readyTimeout = 3 * time.Second

// IndexPinger — проверка доступности индекса.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// DiskUsageFunc возвращает total, used, available в байтах для директории.
type DiskUsageFunc func(path string) (total, used, available int64, err error)

// DependencyHealth — состояние внешних зависимостей (nil для sqlite).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — корень хранилища (проверка записи и ёмкости)
	dataDir string
	// idx — индекс для проверки готовности
	idx IndexPinger
	// diskUsage — источник данных о ёмкости диска (может быть nil)
	diskUsage DiskUsageFunc
	// deps — мониторинг зависимостей (может быть nil)
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir string, idx IndexPinger, diskUsage DiskUsageFunc, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		dataDir:   dataDir,
		idx:       idx,
		diskUsage: diskUsage,
		deps:      deps,
	}
}

// HealthLive обрабатывает GET /health.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filehost",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: индекс, запись в корень хранилища, ёмкость диска, зависимости.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fail := func() {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	indexCheck := h.checkIndex(r.Context())
	if indexCheck["status"] != "ok" {
		fail()
	}

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		fail()
	}

	checks := map[string]any{
		"index":      indexCheck,
		"filesystem": fsCheck,
	}

	if h.diskUsage != nil {
		diskCheck := h.checkDisk()
		checks["disk"] = diskCheck
		if diskCheck["status"] != "ok" && overallStatus != statusFail {
			overallStatus = "degraded"
		}
	}

	if h.deps != nil {
		deps := h.deps.Health()
		checks["dependencies"] = deps
		for _, ok := range deps {
			if !ok && overallStatus != statusFail {
				overallStatus = "degraded"
			}
		}
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filehost",
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkIndex проверяет доступность индекса.
func (h *HealthHandler) checkIndex(ctx context.Context) map[string]any {
	if h.idx == nil {
		return map[string]any{"status": statusFail, "message": "Индекс не настроен"}
	}

	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := h.idx.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Индекс недоступен: " + err.Error(),
		}
	}
	return map[string]any{"status": "ok"}
}

// checkFilesystem проверяет доступность корня хранилища на запись.
// Проверочный файл скрыт (начинается с точки) и не виден при отдаче и сверке.
func (h *HealthHandler) checkFilesystem() map[string]any {
	testFile := filepath.Join(h.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Корень хранилища недоступен для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{"status": "ok"}
}

// checkDisk сообщает ёмкость диска; менее 5% свободного места — degraded.
func (h *HealthHandler) checkDisk() map[string]any {
	total, used, available, err := h.diskUsage(h.dataDir)
	if err != nil {
		return map[string]any{"status": statusFail, "message": err.Error()}
	}

	status := "ok"
	if total > 0 && available*20 < total {
		status = "low_space"
	}
	return map[string]any{
		"status":          status,
		"total_bytes":     total,
		"used_bytes":      used,
		"available_bytes": available,
	}
}
