// reconcile.go — сервис фоновой сверки индекса с файлами на диске.
//
// Обнаруживает и устраняет:
//   - orphan_blob: blob без записи в индексе (старше FH_ORPHAN_GRACE) → blob удаляется
//   - missing_blob: запись без blob на диске → запись удаляется
//   - stale_staged: временный файл прерванной загрузки (старше FH_ORPHAN_GRACE) → удаляется
//
// Снимок индекса берётся до сканирования диска: blob, опубликованный
// между ними, моложе grace-периода и не трогается.
//
// Запускается как горутина с периодическим тикером (FH_RECONCILE_INTERVAL).
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

// Типы проблем сверки (значение метки type).
const (
	IssueOrphanBlob  = "orphan_blob"
	IssueMissingBlob = "missing_blob"
	IssueStaleStaged = "stale_staged"
)

// Prometheus метрики Reconciliation
var (
	// reconcileRunsTotal — количество запусков reconciliation.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_reconcile_runs_total",
		Help: "Общее количество запусков reconciliation",
	})

	// reconcileIssuesTotal — количество устранённых проблем по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_reconcile_issues_total",
		Help: "Общее количество проблем, устранённых reconciliation",
	}, []string{"type"})

	// reconcileDurationSeconds — длительность выполнения reconciliation.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fh_reconcile_duration_seconds",
		Help:    "Длительность выполнения reconciliation в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	FilesChecked int       `json:"files_checked"`
	OrphanBlobs  int       `json:"orphan_blobs"`
	MissingBlobs int       `json:"missing_blobs"`
	StaleStaged  int       `json:"stale_staged"`
	Errors       int       `json:"errors"`
}

// ReconcileService — сервис фоновой сверки хранилища.
type ReconcileService struct {
	store    *filestore.FileStore
	idx      index.Index
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconcileService создаёт сервис reconciliation.
func NewReconcileService(
	store *filestore.FileStore,
	idx index.Index,
	interval time.Duration,
	grace time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *ReconcileService {
	o := applyOptions(opts)
	return &ReconcileService{
		store:    store,
		idx:      idx,
		interval: interval,
		grace:    grace,
		now:      o.now,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину: первый запуск сразу, далее по тикеру.
func (rs *ReconcileService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(runCtx)

	rs.logger.Info("Reconciliation запущена",
		slog.String("interval", rs.interval.String()),
		slog.String("orphan_grace", rs.grace.String()),
	)
}

// Stop останавливает фоновой процесс reconciliation.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
		<-rs.done
	}
	rs.logger.Info("Reconciliation остановлена")
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	rs.RunOnce(ctx)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл reconciliation.
// Если reconciliation уже выполняется, возвращает ErrRunInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	if !rs.mu.TryLock() {
		rs.logger.Warn("Reconciliation уже выполняется, пропуск")
		return nil, ErrRunInProgress
	}
	defer rs.mu.Unlock()

	result := &ReconcileResult{
		RunID:     uuid.NewString(),
		StartedAt: rs.now().UTC(),
	}
	logger := rs.logger.With(slog.String("run_id", result.RunID))
	logger.Info("Reconciliation начата")

	// 1. Снимок индекса
	records, err := rs.idx.List(ctx)
	if err != nil {
		logger.Error("Ошибка чтения индекса", slog.String("error", err.Error()))
		return nil, err
	}

	// 2. Снимок диска
	blobs, err := rs.store.Scan()
	if err != nil {
		logger.Error("Ошибка сканирования хранилища", slog.String("error", err.Error()))
		return nil, err
	}

	indexed := make(map[string]bool, len(records))
	for _, rec := range records {
		indexed[rec.Filename] = true
	}
	onDisk := make(map[string]bool, len(blobs))
	threshold := result.StartedAt.Add(-rs.grace)

	for _, blob := range blobs {
		if blob.Staged {
			if blob.ModTime.Before(threshold) {
				rs.fix(logger, result, IssueStaleStaged, blob.Name, rs.store.RemoveStaged(blob.Name))
			}
			continue
		}
		onDisk[blob.Name] = true

		if !indexed[blob.Name] && blob.ModTime.Before(threshold) {
			rs.fix(logger, result, IssueOrphanBlob, blob.Name, rs.store.Delete(blob.Name))
		}
	}

	// 3. Записи без blob
	for _, rec := range records {
		if onDisk[rec.Filename] {
			continue
		}
		_, err := rs.idx.Delete(ctx, rec.ID)
		rs.fix(logger, result, IssueMissingBlob, rec.Filename, err)
	}

	result.FilesChecked = len(records)
	result.CompletedAt = rs.now().UTC()
	duration := result.CompletedAt.Sub(result.StartedAt)

	// Обновляем Prometheus метрики
	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	if n, err := rs.idx.Count(ctx); err == nil {
		filesStored.Set(float64(n))
	}

	logger.Info("Reconciliation завершена",
		slog.Int("files_checked", result.FilesChecked),
		slog.Int("orphan_blobs", result.OrphanBlobs),
		slog.Int("missing_blobs", result.MissingBlobs),
		slog.Int("stale_staged", result.StaleStaged),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", duration),
	)

	return result, nil
}

// fix учитывает результат устранения одной проблемы.
func (rs *ReconcileService) fix(logger *slog.Logger, result *ReconcileResult, issue, name string, err error) {
	if err != nil {
		logger.Error("Ошибка устранения проблемы",
			slog.String("type", issue),
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
		result.Errors++
		return
	}

	switch issue {
	case IssueOrphanBlob:
		result.OrphanBlobs++
	case IssueMissingBlob:
		result.MissingBlobs++
	case IssueStaleStaged:
		result.StaleStaged++
	}
	reconcileIssuesTotal.WithLabelValues(issue).Inc()

	logger.Warn("Проблема устранена",
		slog.String("type", issue),
		slog.String("filename", name),
	)
}
