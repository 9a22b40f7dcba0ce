package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
)

// Open открывает индекс выбранного бэкенда (FH_INDEX_BACKEND) с применёнными миграциями.
// Для postgres дополнительно возвращается пул подключений, для sqlite — nil.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Index, *pgxpool.Pool, error) {
	switch cfg.IndexBackend {
	case config.BackendSQLite:
		idx, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, nil, nil

	case config.BackendPostgres:
		if err := MigratePostgres(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := ConnectPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool), pool, nil
	}

	return nil, nil, fmt.Errorf("неизвестный бэкенд индекса: %q", cfg.IndexBackend)
}
