// Точка входа файлового хостинга: загрузка файлов с ограниченным сроком хранения.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/api/handlers"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/api/middleware"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/mimepolicy"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/server"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/service"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// defaultServiceID — имя вершины графа, если hostname недоступен.
const defaultServiceID = "filehost"

func main() {
	// .env до чтения окружения; реальные переменные окружения имеют приоритет
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Файловый хостинг запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("index_backend", cfg.IndexBackend),
		slog.String("data_dir", cfg.DataDir),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка запуска", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Файловый хостинг остановлен")
}

// run собирает компоненты, запускает сервер и останавливает фоновые процессы.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("инициализация хранилища: %w", err)
	}

	// 2. MIME-политика
	policy, err := mimepolicy.Parse(cfg.AllowedMIME)
	if err != nil {
		return fmt.Errorf("разбор FH_ALLOWED_MIME: %w", err)
	}
	logger.Info("MIME-политика загружена", slog.String("allowed", policy.String()))

	// 3. Индекс метаданных (миграции применяются при открытии)
	idx, pool, err := index.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("инициализация индекса: %w", err)
	}
	defer idx.Close()

	// 4. Сервисы
	uploadSvc := service.NewUploadService(cfg, store, idx, policy, logger)
	deleteSvc := service.NewDeleteService(store, idx, logger)
	retrieveSvc := service.NewRetrieveService(store, idx)

	// 5. Фоновые процессы
	expirySvc := service.NewExpiryService(store, idx, cfg.SweepInterval, logger)
	expirySvc.Start(ctx)
	defer expirySvc.Stop()

	reconcileSvc := service.NewReconcileService(store, idx, cfg.ReconcileInterval, cfg.OrphanGrace, logger)
	reconcileSvc.Start(ctx)
	defer reconcileSvc.Stop()

	// 5.1 topologymetrics — только для PostgreSQL
	var deps handlers.DependencyHealth
	if pool != nil {
		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()

		dephealthSvc, dhErr := service.NewDephealthService(
			serviceID(cfg),
			cfg.DephealthGroup,
			db,
			cfg.DatabaseURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			deps = dephealthSvc
		}
	}

	// 6. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(cfg, uploadSvc, deleteSvc, retrieveSvc, logger),
		handlers.NewMaintenanceHandler(expirySvc, reconcileSvc, logger),
		handlers.NewHealthHandler(cfg.DataDir, idx, getDiskUsage, deps),
	)

	// 7. Access gate
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, cfg.RateMaxClients)
	auth := middleware.NewSecretAuth(cfg.UploadSecret, logger)

	// 8. HTTP-сервер (блокируется до сигнала завершения)
	srv := server.New(cfg, logger, apiHandler, limiter, auth)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("Остановка фоновых процессов...")
	return nil
}

// serviceID возвращает FH_SERVICE_ID или имя владельца пода из hostname.
func serviceID(cfg *config.Config) string {
	if cfg.ServiceID != "" {
		return cfg.ServiceID
	}
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return defaultServiceID
	}
	return parseOwnerName(hostname)
}
