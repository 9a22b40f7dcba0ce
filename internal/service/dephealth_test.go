package service

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

// unreachablePG — адрес, на котором гарантированно нет PostgreSQL.
const unreachablePG = "postgres://fh:fh@127.0.0.1:1/filehost?connect_timeout=1"

// openUnreachableDB возвращает *sql.DB без установленного соединения.
func openUnreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", unreachablePG)
	if err != nil {
		t.Fatalf("ошибка sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDephealthService_ValidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Используем изолированный Prometheus registry для тестов
	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"filehost-test-01",
		"filehost",
		openUnreachableDB(t),
		unreachablePG,
		5*time.Second,
		logger,
		reg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_UnhealthyDependency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"filehost-test-02",
		"filehost",
		openUnreachableDB(t),
		unreachablePG,
		1*time.Second,
		logger,
		reg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку
	time.Sleep(3 * time.Second)

	health := ds.Health()

	found := false
	for key, val := range health {
		if strings.HasPrefix(key, "postgresql:") {
			found = true
			if val {
				t.Errorf("postgresql health = true для ключа %q, ожидалось false", key)
			}
			break
		}
	}
	if !found {
		t.Errorf("Нет записи для postgresql в Health(), keys=%v", healthKeys(health))
	}

	ds.Stop()
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
