// metrics.go — Prometheus HTTP метрики файлового хостинга.
// Регистрирует метрики: fh_http_requests_total, fh_http_request_duration_seconds.
// Бизнес-метрики (fh_uploads_total, fh_files_stored и др.) регистрируются
// в сервисном слое.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fh_http_requests_total",
			Help: "Общее количество HTTP-запросов к файловому хостингу",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fh_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к файловому хостингу в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Имена файлов и id заменяются шаблонами (ограничение кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath сводит пути с переменными сегментами к шаблонам:
//
//	/delete/0a1b2c3d4e5f → /delete/{id}
//	/0a1b2c3d4e5f.png    → /{filename}
func normalizePath(path string) string {
	switch path {
	case "/health", "/health/ready", "/metrics", "/upload",
		"/maintenance/reconcile", "/maintenance/sweep":
		return path
	}

	if strings.HasPrefix(path, "/delete/") {
		return "/delete/{id}"
	}

	// Один сегмент после корня — имя файла
	if len(path) > 1 && !strings.Contains(path[1:], "/") {
		return "/{filename}"
	}
	return "other"
}
