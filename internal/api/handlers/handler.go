// handler.go — APIHandler собирает доменные handler'ы в один объект,
// на методы которого ссылается таблица маршрутов сервера.
package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler — единая точка входа для всех endpoints.
type APIHandler struct {
	files       *FilesHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
	metrics     http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		files:       files,
		maintenance: maintenance,
		health:      health,
		metrics:     promhttp.Handler(),
	}
}

// --- File Operations ---

func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.files.UploadFile(w, r)
}

func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	h.files.DeleteFile(w, r)
}

func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	h.files.GetFile(w, r)
}

// --- Maintenance ---

func (h *APIHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	h.maintenance.Sweep(w, r)
}

func (h *APIHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.maintenance.Reconcile(w, r)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- Metrics ---

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
