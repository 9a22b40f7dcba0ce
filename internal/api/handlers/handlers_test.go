package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSweeper / fakeReconciler возвращают заданный результат или ошибку.
type fakeSweeper struct{ err error }

func (f fakeSweeper) RunOnce(context.Context) (*service.SweepResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepResult{RunID: "sweep-1", Reclaimed: 3}, nil
}

type fakeReconciler struct{ err error }

func (f fakeReconciler) RunOnce(context.Context) (*service.ReconcileResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ReconcileResult{RunID: "rec-1", OrphanBlobs: 1}, nil
}

func TestMaintenance_Sweep(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"успех", nil, http.StatusOK},
		{"уже выполняется", service.ErrRunInProgress, http.StatusConflict},
		{"ошибка индекса", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMaintenanceHandler(fakeSweeper{err: tt.err}, fakeReconciler{err: tt.err}, testLogger())

			for _, fn := range []http.HandlerFunc{h.Sweep, h.Reconcile} {
				rec := httptest.NewRecorder()
				fn(rec, httptest.NewRequest(http.MethodPost, "/maintenance/x", nil))
				if rec.Code != tt.wantStatus {
					t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
				}
			}
		})
	}
}

func TestMaintenance_SweepBody(t *testing.T) {
	h := NewMaintenanceHandler(fakeSweeper{}, fakeReconciler{}, testLogger())
	rec := httptest.NewRecorder()
	h.Sweep(rec, httptest.NewRequest(http.MethodPost, "/maintenance/sweep", nil))

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	if body["run_id"] != "sweep-1" || body["reclaimed"] != float64(3) {
		t.Errorf("неожиданный ответ: %v", body)
	}
}

// fakePinger — индекс с заданным результатом Ping.
type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeDeps map[string]bool

func (f fakeDeps) Health() map[string]bool { return f }

func TestHealthReady(t *testing.T) {
	okDisk := func(string) (int64, int64, int64, error) { return 100, 10, 90, nil }
	lowDisk := func(string) (int64, int64, int64, error) { return 100, 99, 1, nil }

	tests := []struct {
		name       string
		dataDir    string
		idx        IndexPinger
		disk       DiskUsageFunc
		deps       DependencyHealth
		wantStatus int
		wantBody   string
	}{
		{"всё в порядке", "", fakePinger{}, okDisk, nil, http.StatusOK, "ok"},
		{"индекс недоступен", "", fakePinger{err: errors.New("closed")}, okDisk, nil, http.StatusServiceUnavailable, statusFail},
		{"хранилище недоступно", "/nonexistent/filehost", fakePinger{}, nil, nil, http.StatusServiceUnavailable, statusFail},
		{"мало места", "", fakePinger{}, lowDisk, nil, http.StatusOK, "degraded"},
		{"зависимость недоступна", "", fakePinger{}, nil, fakeDeps{"postgresql:db:5432": false}, http.StatusOK, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.dataDir
			if dir == "" {
				dir = t.TempDir()
			}
			h := NewHealthHandler(dir, tt.idx, tt.disk, tt.deps)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
			}
			var body map[string]any
			_ = json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.wantBody {
				t.Errorf("status: ожидалось %q, получено %v", tt.wantBody, body["status"])
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(filepath.Join(t.TempDir(), "missing"), nil, nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness не зависит от хранилища: ожидался 200, получен %d", rec.Code)
	}
}

func TestParseRetention(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"1", time.Second, false},
		{"86400", 24 * time.Hour, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"1.5", 0, true},
		{"24h", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		got, err := parseRetention(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("parseRetention(%q): ожидалась ошибка валидации, получено %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseRetention(%q): ожидалось %v, получено %v (err=%v)", tt.raw, tt.want, got, err)
		}
	}
}
