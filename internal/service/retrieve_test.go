package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRetrieve_Open(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.putFile(t, "abcabcabcabc", time.Now(), time.Hour)
	svc := NewRetrieveService(env.store, env.idx)

	got, err := svc.Open(context.Background(), rec.Filename)
	if err != nil {
		t.Fatalf("Ошибка открытия: %v", err)
	}
	defer got.File.Close()

	data, _ := io.ReadAll(got.File)
	if string(data) != "test data" {
		t.Errorf("содержимое: получено %q", data)
	}
	if got.ContentType != "text/plain" || got.Info.Size() != 9 {
		t.Errorf("неожиданные метаданные: type=%q size=%d", got.ContentType, got.Info.Size())
	}
}

// Видимость определяется только наличием blob: просроченный, но ещё
// не очищенный файл отдаётся до ближайшей очистки.
func TestRetrieve_ExpiredBeforeSweep(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.putFile(t, "fedfedfedfed", time.Now().Add(-2*time.Hour), time.Hour)
	svc := NewRetrieveService(env.store, env.idx)

	got, err := svc.Open(context.Background(), rec.Filename)
	if err != nil {
		t.Fatalf("Open(%q): %v", rec.Filename, err)
	}
	got.File.Close()
}

func TestRetrieve_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	missing := env.putFile(t, "aaaabbbbcccc", time.Now(), time.Hour)
	if err := os.Remove(filepath.Join(env.dir, missing.Filename)); err != nil {
		t.Fatalf("Ошибка удаления blob: %v", err)
	}
	if err := os.Mkdir(filepath.Join(env.dir, "subdir"), 0o755); err != nil {
		t.Fatalf("Ошибка создания директории: %v", err)
	}

	svc := NewRetrieveService(env.store, env.idx)

	names := []string{
		"",
		"../index.db",
		".upload-x.tmp",
		"000000000000.txt",
		"subdir",
		missing.Filename,
	}
	for _, name := range names {
		if _, err := svc.Open(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): ожидалась ErrNotFound, получено %v", name, err)
		}
	}
}

// Тип, разрешённый только wildcard-правилом, отдаётся с заявленным MIME
// независимо от расширения в клиентском имени файла.
func TestRetrieve_DeclaredTypeForWildcardSubtype(t *testing.T) {
	env := setupTestEnv(t)
	upload := env.newUploadService(t)
	svc := NewRetrieveService(env.store, env.idx)

	tests := []struct {
		mime     string
		filename string
	}{
		{"image/x-foo", "x.html"},
		{"image/x-foo", "x.svg"},
		{"image/jpg", "x.js"},
		{"image/x-foo", "x.fhdump"},
	}

	for _, tt := range tests {
		rec, err := upload.Upload(context.Background(), UploadRequest{
			Reader:   strings.NewReader("<script>alert(1)</script>"),
			Filename: tt.filename,
			MIME:     tt.mime,
			Size:     -1,
		})
		if err != nil {
			t.Fatalf("Upload(%s, %s): %v", tt.mime, tt.filename, err)
		}

		got, err := svc.Open(context.Background(), rec.Filename)
		if err != nil {
			t.Fatalf("Open(%q): %v", rec.Filename, err)
		}
		got.File.Close()

		if got.ContentType != tt.mime {
			t.Errorf("%s как %s: отдан тип %q (blob %s)", tt.filename, tt.mime, got.ContentType, rec.Filename)
		}
	}
}

// Blob без значимого расширения и без записи отдаётся как application/octet-stream.
func TestRetrieve_UnknownTypeWithoutRecord(t *testing.T) {
	env := setupTestEnv(t)
	name := "abababababab.bin"
	if err := os.WriteFile(filepath.Join(env.dir, name), []byte("<html>"), 0o640); err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}

	got, err := NewRetrieveService(env.store, env.idx).Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%q): %v", name, err)
	}
	got.File.Close()

	if got.ContentType != DefaultMIME {
		t.Errorf("ожидался %s, получено %q", DefaultMIME, got.ContentType)
	}
}
