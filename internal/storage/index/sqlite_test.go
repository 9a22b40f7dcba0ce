package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
)

// testLogger — логгер, отбрасывающий вывод.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestSQLite открывает индекс во временной директории.
func openTestSQLite(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "index.db")
	idx, err := OpenSQLite(context.Background(), path, testLogger())
	if err != nil {
		t.Fatalf("ошибка открытия индекса: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx, path
}

// testRecord создаёт запись с заданным id и сроком хранения.
func testRecord(id string, createdAt time.Time, retention time.Duration) *model.FileRecord {
	return model.NewFileRecord(id, "png", "image/png", 10240, createdAt.Truncate(time.Millisecond), retention)
}

func TestSQLite_InsertGet(t *testing.T) {
	idx, _ := openTestSQLite(t)
	ctx := context.Background()

	rec := testRecord("aaaaaaaaaaaa", time.Now(), time.Hour)
	if err := idx.Insert(ctx, rec); err != nil {
		t.Fatalf("ошибка вставки: %v", err)
	}

	got, err := idx.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ошибка получения: %v", err)
	}
	if got.Filename != "aaaaaaaaaaaa.png" || got.MIME != "image/png" || got.Size != 10240 {
		t.Errorf("неожиданная запись: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("время: ожидалось %v/%v, получено %v/%v",
			rec.CreatedAt, rec.ExpiresAt, got.CreatedAt, got.ExpiresAt)
	}
}

func TestSQLite_InsertDuplicate(t *testing.T) {
	idx, _ := openTestSQLite(t)
	ctx := context.Background()

	first := testRecord("bbbbbbbbbbbb", time.Now(), time.Hour)
	if err := idx.Insert(ctx, first); err != nil {
		t.Fatalf("ошибка вставки: %v", err)
	}

	second := testRecord("bbbbbbbbbbbb", time.Now(), 2*time.Hour)
	second.MIME = "text/plain"
	if err := idx.Insert(ctx, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("ожидалась ErrDuplicate, получено %v", err)
	}

	got, _ := idx.Get(ctx, "bbbbbbbbbbbb")
	if got.MIME != "image/png" {
		t.Errorf("существующая запись перезаписана: %+v", got)
	}
}

func TestSQLite_GetNotFound(t *testing.T) {
	idx, _ := openTestSQLite(t)

	if _, err := idx.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestSQLite_DeleteIdempotent(t *testing.T) {
	idx, _ := openTestSQLite(t)
	ctx := context.Background()

	idx.Insert(ctx, testRecord("cccccccccccc", time.Now(), time.Hour))

	deleted, err := idx.Delete(ctx, "cccccccccccc")
	if err != nil || !deleted {
		t.Fatalf("первое удаление: deleted=%v err=%v", deleted, err)
	}

	deleted, err = idx.Delete(ctx, "cccccccccccc")
	if err != nil {
		t.Fatalf("повторное удаление не должно возвращать ошибку: %v", err)
	}
	if deleted {
		t.Error("повторное удаление должно вернуть false")
	}
}

func TestSQLite_ListExpired(t *testing.T) {
	idx, _ := openTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// expires_at = now - 1s, now (граница включительна), now + 1h
	idx.Insert(ctx, testRecord("000000000001", now.Add(-time.Hour), time.Hour-time.Second))
	idx.Insert(ctx, testRecord("000000000002", now.Add(-time.Hour), time.Hour))
	idx.Insert(ctx, testRecord("000000000003", now, time.Hour))

	expired, err := idx.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ошибка выборки: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("ожидалось 2 просроченные записи, получено %d", len(expired))
	}
	if expired[0].ID != "000000000001" || expired[1].ID != "000000000002" {
		t.Errorf("порядок по expires_at нарушен: %s, %s", expired[0].ID, expired[1].ID)
	}

	n, err := idx.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count: ожидалось 3, получено %d (err=%v)", n, err)
	}

	all, err := idx.List(ctx)
	if err != nil || len(all) != 3 {
		t.Errorf("List: ожидалось 3 записи, получено %d (err=%v)", len(all), err)
	}
}

// TestSQLite_SurvivesReopen проверяет персистентность между перезапусками.
func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := OpenSQLite(ctx, path, testLogger())
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	if err := idx.Insert(ctx, testRecord("dddddddddddd", time.Now(), time.Hour)); err != nil {
		t.Fatalf("ошибка вставки: %v", err)
	}
	idx.Close()

	// Повторное открытие: миграции уже применены (ErrNoChange не ошибка)
	idx, err = OpenSQLite(ctx, path, testLogger())
	if err != nil {
		t.Fatalf("ошибка повторного открытия: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Get(ctx, "dddddddddddd"); err != nil {
		t.Errorf("запись должна пережить перезапуск: %v", err)
	}
	if err := idx.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{
		IndexBackend: config.BackendSQLite,
		SQLitePath:   filepath.Join(dir, "index.db"),
	}
	idx, pool, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("ошибка открытия sqlite: %v", err)
	}
	defer idx.Close()
	if pool != nil {
		t.Error("для sqlite пул должен быть nil")
	}
	if err := idx.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}

	cfg.IndexBackend = "redis"
	if _, _, err := Open(context.Background(), cfg, testLogger()); err == nil {
		t.Error("ожидалась ошибка для неизвестного бэкенда")
	}
}
