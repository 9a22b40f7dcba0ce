package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется *pgxpool.Pool, pgx.Tx и pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Index = (*PostgresIndex)(nil)

// PostgresIndex — индекс в таблице files PostgreSQL.
type PostgresIndex struct {
	db DBTX
}

// NewPostgres создаёт индекс поверх пула или транзакции.
func NewPostgres(db DBTX) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// ConnectPostgres создаёт пул подключений к PostgreSQL и проверяет доступность.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", poolCfg.ConnConfig.Database),
	)

	return pool, nil
}

// MigratePostgres применяет миграции через драйвер pgx5 golang-migrate.
func MigratePostgres(databaseURL string, logger *slog.Logger) error {
	return runMigrations("postgres", migrateURL(databaseURL), logger)
}

// migrateURL заменяет схему postgres:// на pgx5:// для golang-migrate.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Insert добавляет запись, не перезаписывая существующую.
func (p *PostgresIndex) Insert(ctx context.Context, rec *model.FileRecord) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO files (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Filename, rec.Ext, rec.MIME, rec.Size, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

// Get возвращает запись по id или ErrNotFound.
func (p *PostgresIndex) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	row := p.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM files WHERE id = $1`, id)

	rec, err := scanPostgresRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи %s: %w", id, err)
	}
	return rec, nil
}

// Delete удаляет запись. Повторное удаление возвращает false без ошибки.
func (p *PostgresIndex) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListExpired возвращает записи с expires_at <= cutoff.
func (p *PostgresIndex) ListExpired(ctx context.Context, cutoff time.Time) ([]*model.FileRecord, error) {
	return p.query(ctx,
		`SELECT `+recordColumns+` FROM files WHERE expires_at <= $1 ORDER BY expires_at`,
		cutoff,
	)
}

// List возвращает все записи.
func (p *PostgresIndex) List(ctx context.Context) ([]*model.FileRecord, error) {
	return p.query(ctx, `SELECT `+recordColumns+` FROM files ORDER BY created_at`)
}

// Count возвращает количество записей.
func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

// Ping проверяет доступность базы, если DBTX это поддерживает.
func (p *PostgresIndex) Ping(ctx context.Context) error {
	if pinger, ok := p.db.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close закрывает пул, если DBTX им владеет.
func (p *PostgresIndex) Close() error {
	if closer, ok := p.db.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

func (p *PostgresIndex) query(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
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

func scanPostgresRecord(row rowScanner) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Ext, &rec.MIME, &rec.Size, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}
