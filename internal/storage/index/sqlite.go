package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
)

var _ Index = (*SQLiteIndex)(nil)

// SQLiteIndex — индекс в файле SQLite.
// Все запросы идут через одно соединение (SetMaxOpenConns(1)).
type SQLiteIndex struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite применяет миграции и открывает индекс в файле path.
// Директория файла создаётся при необходимости.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteIndex, error) {
	logger = logger.With(slog.String("component", "index"))

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию индекса: %w", err)
	}

	if err := runMigrations("sqlite", "sqlite3://"+filepath.ToSlash(path), logger); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}

	logger.Info("Индекс SQLite открыт", slog.String("path", path))

	return &SQLiteIndex{db: db, path: path, logger: logger}, nil
}

// Insert добавляет запись, не перезаписывая существующую.
func (s *SQLiteIndex) Insert(ctx context.Context, rec *model.FileRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Filename, rec.Ext, rec.MIME, rec.Size,
		rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка вставки записи %s: %w", rec.ID, err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// Get возвращает запись по id или ErrNotFound.
func (s *SQLiteIndex) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM files WHERE id = ?`, id)

	rec, err := scanSQLiteRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи %s: %w", id, err)
	}
	return rec, nil
}

// Delete удаляет запись. Повторное удаление возвращает false без ошибки.
func (s *SQLiteIndex) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи %s: %w", id, err)
	}
	return n > 0, nil
}

// ListExpired возвращает записи с expires_at <= cutoff.
func (s *SQLiteIndex) ListExpired(ctx context.Context, cutoff time.Time) ([]*model.FileRecord, error) {
	return s.query(ctx,
		`SELECT `+recordColumns+` FROM files WHERE expires_at <= ? ORDER BY expires_at`,
		cutoff.UnixMilli(),
	)
}

// List возвращает все записи.
func (s *SQLiteIndex) List(ctx context.Context) ([]*model.FileRecord, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM files ORDER BY created_at`)
}

// Count возвращает количество записей.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

// Ping проверяет доступность базы.
func (s *SQLiteIndex) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает базу.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) query(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации записей: %w", err)
	}
	return result, nil
}

// scanSQLiteRecord читает строку; время хранится в unix-миллисекундах.
func scanSQLiteRecord(row rowScanner) (*model.FileRecord, error) {
	var (
		rec                  model.FileRecord
		createdAt, expiresAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Ext, &rec.MIME, &rec.Size, &createdAt, &expiresAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &rec, nil
}
