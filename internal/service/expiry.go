// expiry.go — фоновая очистка просроченных файлов.
//
// Каждый запуск фиксирует момент now, выбирает из индекса снимок записей
// с expires_at <= now и для каждой удаляет сначала blob, затем запись.
// Записи, вставленные после снимка, в текущем запуске не рассматриваются.
// Ошибка на одной записи не прерывает очистку остальных.
//
// Запускается сразу при старте и далее с периодом FH_SWEEP_INTERVAL.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество запусков очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_sweep_runs_total",
		Help: "Общее количество запусков очистки просроченных файлов",
	})

	// sweepReclaimedTotal — количество удалённых просроченных файлов.
	sweepReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_sweep_reclaimed_total",
		Help: "Общее количество файлов, удалённых очисткой",
	})

	// sweepErrorsTotal — ошибки обработки отдельных записей.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_sweep_errors_total",
		Help: "Общее количество ошибок при очистке отдельных файлов",
	})

	// sweepDurationSeconds — длительность выполнения очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fh_sweep_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// RunID — идентификатор запуска для корреляции логов
	RunID string `json:"run_id"`
	// Cutoff — момент снимка: удаляются записи с expires_at <= Cutoff
	Cutoff time.Time `json:"cutoff"`
	// Found — количество просроченных записей в снимке
	Found int `json:"found"`
	// Reclaimed — количество удалённых записей
	Reclaimed int `json:"reclaimed"`
	// Errors — количество записей, обработка которых завершилась ошибкой
	Errors int `json:"errors"`
	// Duration — длительность выполнения
	Duration time.Duration `json:"-"`
	// DurationMs — длительность в миллисекундах (для JSON)
	DurationMs int64 `json:"duration_ms"`
}

// ExpiryService — сервис фоновой очистки просроченных файлов.
type ExpiryService struct {
	store    *filestore.FileStore
	idx      index.Index
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiryService создаёт сервис очистки.
func NewExpiryService(
	store *filestore.FileStore,
	idx index.Index,
	interval time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *ExpiryService {
	o := applyOptions(opts)
	return &ExpiryService{
		store:    store,
		idx:      idx,
		interval: interval,
		now:      o.now,
		logger:   logger.With(slog.String("component", "expiry")),
	}
}

// Start запускает фоновую горутину: первый запуск сразу, далее по тикеру.
// Вызывается один раз при старте приложения.
func (es *ExpiryService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	es.cancel = cancel
	es.done = make(chan struct{})

	go es.run(runCtx)

	es.logger.Info("Очистка просроченных файлов запущена",
		slog.String("interval", es.interval.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается завершения текущего запуска.
func (es *ExpiryService) Stop() {
	if es.cancel != nil {
		es.cancel()
		<-es.done
	}
	es.logger.Info("Очистка просроченных файлов остановлена")
}

// run — основной цикл фоновой горутины.
func (es *ExpiryService) run(ctx context.Context) {
	defer close(es.done)

	// Первый запуск — сразу после старта
	es.RunOnce(ctx)

	ticker := time.NewTicker(es.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			es.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки синхронно.
// Если очистка уже выполняется, возвращает ErrRunInProgress.
func (es *ExpiryService) RunOnce(ctx context.Context) (*SweepResult, error) {
	if !es.mu.TryLock() {
		es.logger.Warn("Очистка уже выполняется, пропуск")
		return nil, ErrRunInProgress
	}
	defer es.mu.Unlock()

	start := time.Now()
	result := &SweepResult{
		RunID:  uuid.NewString(),
		Cutoff: es.now().UTC(),
	}
	logger := es.logger.With(slog.String("run_id", result.RunID))

	// Снимок: всё, что вставлено позже, ждёт следующего запуска
	expired, err := es.idx.ListExpired(ctx, result.Cutoff)
	if err != nil {
		logger.Error("Ошибка выборки просроченных записей",
			slog.String("error", err.Error()),
		)
		sweepRunsTotal.Inc()
		return nil, err
	}
	result.Found = len(expired)

	for i, rec := range expired {
		if ctx.Err() != nil {
			logger.Warn("Очистка прервана", slog.Int("remaining", len(expired)-i))
			break
		}

		// Сначала blob: отсутствующий blob считается уже удалённым
		if err := es.store.Delete(rec.Filename); err != nil {
			logger.Error("Ошибка удаления blob",
				slog.String("file_id", rec.ID),
				slog.String("filename", rec.Filename),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		deleted, err := es.idx.Delete(ctx, rec.ID)
		if err != nil {
			logger.Error("Ошибка удаления записи",
				slog.String("file_id", rec.ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		if !deleted {
			// Запись удалена параллельным DELETE
			continue
		}

		logger.Debug("Просроченный файл удалён",
			slog.String("file_id", rec.ID),
			slog.String("filename", rec.Filename),
			slog.Time("expires_at", rec.ExpiresAt),
		)
		result.Reclaimed++
	}

	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	sweepReclaimedTotal.Add(float64(result.Reclaimed))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())
	if n, err := es.idx.Count(ctx); err == nil {
		filesStored.Set(float64(n))
	}

	logger.Info("Очистка завершена",
		slog.Int("found", result.Found),
		slog.Int("reclaimed", result.Reclaimed),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}
