// Пакет index — персистентный индекс метаданных файлов (id → FileRecord).
//
// Две реализации: SQLite (по умолчанию, файл рядом с хранилищем) и
// PostgreSQL. Схема применяется встроенными миграциями golang-migrate
// до начала обслуживания запросов.
//
// Инварианты: Insert никогда не перезаписывает существующий id,
// Delete отсутствующего id — no-op, ListExpired возвращает снимок
// записей с expires_at <= cutoff на момент запроса.
package index

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
)

// Ошибки индекса.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrDuplicate — запись с таким id уже существует.
	ErrDuplicate = errors.New("запись с таким идентификатором уже существует")
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Index — хранилище записей о файлах.
// Все мутации атомарны относительно конкурентных читателей.
type Index interface {
	// Insert добавляет запись. Возвращает ErrDuplicate, если id занят.
	Insert(ctx context.Context, rec *model.FileRecord) error
	// Get возвращает запись по id или ErrNotFound.
	Get(ctx context.Context, id string) (*model.FileRecord, error)
	// Delete удаляет запись. Возвращает false, если записи не было.
	Delete(ctx context.Context, id string) (bool, error)
	// ListExpired возвращает записи с expires_at <= cutoff, по возрастанию expires_at.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*model.FileRecord, error)
	// List возвращает все записи (для сверки с диском).
	List(ctx context.Context) ([]*model.FileRecord, error)
	// Count возвращает количество записей.
	Count(ctx context.Context) (int, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}

// rowScanner — общий интерфейс *sql.Row, *sql.Rows, pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// recordColumns — список столбцов таблицы files для SELECT-запросов.
const recordColumns = `id, filename, ext, mime, size, created_at, expires_at`

// runMigrations применяет миграции из поддиректории embedded FS.
func runMigrations(dir, dbURL string, logger *slog.Logger) error {
	// Создаём источник миграций из embedded FS
	source, err := iofs.New(migrationsFS, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	// Применяем все миграции
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.String("backend", dir),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}
