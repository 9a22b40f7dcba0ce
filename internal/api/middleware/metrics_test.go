package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
		{"/upload", "/upload"},
		{"/maintenance/sweep", "/maintenance/sweep"},
		{"/delete/0a1b2c3d4e5f", "/delete/{id}"},
		{"/0a1b2c3d4e5f.png", "/{filename}"},
		{"/a/b/c", "other"},
		{"/", "other"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q): ожидалось %q, получено %q", tt.path, tt.want, got)
		}
	}
}

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("body"))
		}))

		req := httptest.NewRequest(http.MethodGet, "/abc.png", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("статус %d: ожидался %s, лог: %s", tt.status, tt.level, out)
		}
		if !strings.Contains(out, "bytes=4") || !strings.Contains(out, "path=/abc.png") {
			t.Errorf("в логе нет размера или пути: %s", out)
		}
	}
}
