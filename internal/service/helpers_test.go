package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/mimepolicy"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// testEnv — хранилище и индекс во временной директории.
type testEnv struct {
	dir   string
	store *filestore.FileStore
	idx   *index.SQLiteIndex
	cfg   *config.Config
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestEnv создаёт тестовое окружение сервисов.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "files")
	store, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	idx, err := index.OpenSQLite(context.Background(), filepath.Join(root, "index.db"), testLogger())
	if err != nil {
		t.Fatalf("Ошибка открытия индекса: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	cfg := &config.Config{
		MaxFileSize:      1024,
		DefaultRetention: 24 * time.Hour,
		MaxRetention:     48 * time.Hour,
	}

	return &testEnv{dir: dir, store: store, idx: idx, cfg: cfg}
}

// newUploadService создаёт UploadService с allow-list image/*, text/plain.
func (e *testEnv) newUploadService(t *testing.T, opts ...Option) *UploadService {
	t.Helper()
	policy, err := mimepolicy.Parse("image/*,text/plain")
	if err != nil {
		t.Fatalf("Ошибка создания политики: %v", err)
	}
	return NewUploadService(e.cfg, e.store, e.idx, policy, testLogger(), opts...)
}

// putFile создаёт blob и запись напрямую, минуя UploadService.
func (e *testEnv) putFile(t *testing.T, id string, createdAt time.Time, retention time.Duration) *model.FileRecord {
	t.Helper()
	rec := model.NewFileRecord(id, "txt", "text/plain", 9, createdAt.UTC().Truncate(time.Millisecond), retention)
	if err := os.WriteFile(filepath.Join(e.dir, rec.Filename), []byte("test data"), 0o640); err != nil {
		t.Fatalf("Ошибка создания тестового файла: %v", err)
	}
	if err := e.idx.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Ошибка вставки записи: %v", err)
	}
	return rec
}

// blobCount возвращает количество файлов в корне хранилища.
func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		t.Fatalf("Ошибка чтения директории: %v", err)
	}
	return len(entries)
}

// fixedClock — управляемые часы для тестов.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// duplicateIndex возвращает ErrDuplicate на первые n вставок.
type duplicateIndex struct {
	index.Index
	n     int
	calls int
}

func (d *duplicateIndex) Insert(ctx context.Context, rec *model.FileRecord) error {
	d.calls++
	if d.calls <= d.n {
		return index.ErrDuplicate
	}
	return d.Index.Insert(ctx, rec)
}
