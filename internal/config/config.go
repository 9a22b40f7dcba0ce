// Пакет config — загрузка и валидация конфигурации файлового хостинга
// из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды индекса метаданных.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Префикс возвращаемых URL (без завершающего "/")
	BaseURL string
	// Общий секрет для загрузки, удаления и maintenance
	UploadSecret string
	// Путь к директории хранения blob
	DataDir string
	// Бэкенд индекса: sqlite или postgres
	IndexBackend string
	// Путь к файлу SQLite
	SQLitePath string
	// URL подключения к PostgreSQL (только для postgres)
	DatabaseURL string
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Срок хранения по умолчанию
	DefaultRetention time.Duration
	// Максимальный срок хранения, запрошенный клиентом (0 — без ограничения)
	MaxRetention time.Duration
	// Интервал фоновой очистки просроченных файлов
	SweepInterval time.Duration
	// Интервал автоматической сверки
	ReconcileInterval time.Duration
	// Минимальный возраст blob без записи перед удалением при сверке
	OrphanGrace time.Duration
	// Allow-list MIME-типов через запятую
	AllowedMIME string
	// Лимит запросов на клиента за окно
	RateLimit int
	// Длительность окна rate limit
	RateWindow time.Duration
	// Максимальное число отслеживаемых клиентов
	RateMaxClients int
	// Определять клиента по X-Forwarded-For / X-Real-IP
	TrustProxy bool
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// HTTP server timeouts
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Имя сервиса в графе зависимостей topologymetrics
	ServiceID string
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// LoadDotEnv загружает переменные из .env файла (FH_ENV_FILE, по умолчанию .env).
// Уже заданные переменные окружения не перезаписываются.
// Отсутствие файла не является ошибкой.
func LoadDotEnv() error {
	path := getEnvDefault("FH_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("FH_ENV_FILE: ошибка чтения %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FH_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("FH_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FH_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FH_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FH_BASE_URL — префикс URL (по умолчанию http://localhost:{port})
	cfg.BaseURL = strings.TrimRight(
		getEnvDefault("FH_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	// FH_UPLOAD_SECRET — обязательный
	cfg.UploadSecret, err = getEnvRequired("FH_UPLOAD_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.DataDir = getEnvDefault("FH_DATA_DIR", "./data/files")

	// FH_INDEX_BACKEND — sqlite (по умолчанию) или postgres
	cfg.IndexBackend = strings.ToLower(getEnvDefault("FH_INDEX_BACKEND", BackendSQLite))
	switch cfg.IndexBackend {
	case BackendSQLite:
		cfg.SQLitePath = getEnvDefault("FH_SQLITE_PATH", "./data/index.db")
	case BackendPostgres:
		cfg.DatabaseURL, err = getEnvRequired("FH_DATABASE_URL")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FH_INDEX_BACKEND: недопустимое значение %q, допустимые: sqlite, postgres", cfg.IndexBackend)
	}

	// FH_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	cfg.MaxFileSize, err = getEnvInt64("FH_MAX_FILE_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("FH_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FH_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// FH_DEFAULT_RETENTION — срок хранения по умолчанию (24h)
	cfg.DefaultRetention, err = getEnvDuration("FH_DEFAULT_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FH_DEFAULT_RETENTION: %w", err)
	}
	if cfg.DefaultRetention <= 0 {
		return nil, fmt.Errorf("FH_DEFAULT_RETENTION: значение должно быть положительным")
	}

	// FH_MAX_RETENTION — верхняя граница для клиентского срока (720h, 0 — без ограничения)
	cfg.MaxRetention, err = getEnvDuration("FH_MAX_RETENTION", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FH_MAX_RETENTION: %w", err)
	}
	if cfg.MaxRetention < 0 {
		return nil, fmt.Errorf("FH_MAX_RETENTION: значение не может быть отрицательным")
	}
	if cfg.MaxRetention > 0 && cfg.MaxRetention < cfg.DefaultRetention {
		return nil, fmt.Errorf("FH_MAX_RETENTION: значение %s должно быть >= FH_DEFAULT_RETENTION (%s)",
			cfg.MaxRetention, cfg.DefaultRetention)
	}

	// FH_SWEEP_INTERVAL — интервал очистки (по умолчанию 10m)
	cfg.SweepInterval, err = getEnvPositiveDuration("FH_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	// FH_RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvPositiveDuration("FH_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	// FH_ORPHAN_GRACE — защита от удаления blob, запись которого ещё вставляется
	cfg.OrphanGrace, err = getEnvPositiveDuration("FH_ORPHAN_GRACE", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.AllowedMIME = getEnvDefault("FH_ALLOWED_MIME",
		"image/*,video/*,audio/*,application/pdf,text/plain,application/zip")

	// FH_RATE_LIMIT — запросов на клиента за окно (по умолчанию 30)
	cfg.RateLimit, err = getEnvInt("FH_RATE_LIMIT", 30)
	if err != nil {
		return nil, fmt.Errorf("FH_RATE_LIMIT: %w", err)
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("FH_RATE_LIMIT: значение должно быть положительным")
	}

	cfg.RateWindow, err = getEnvPositiveDuration("FH_RATE_WINDOW", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.RateMaxClients, err = getEnvInt("FH_RATE_MAX_CLIENTS", 10000)
	if err != nil {
		return nil, fmt.Errorf("FH_RATE_MAX_CLIENTS: %w", err)
	}
	if cfg.RateMaxClients <= 0 {
		return nil, fmt.Errorf("FH_RATE_MAX_CLIENTS: значение должно быть положительным")
	}

	cfg.TrustProxy, err = getEnvBool("FH_TRUST_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("FH_TRUST_PROXY: %w", err)
	}

	// FH_TLS_CERT / FH_TLS_KEY — задаются вместе или не задаются вовсе
	cfg.TLSCert = getEnvDefault("FH_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("FH_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("FH_TLS_CERT и FH_TLS_KEY должны задаваться вместе")
	}

	// FH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FH_LOG_LEVEL: %w", err)
	}

	// FH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvPositiveDuration("FH_HTTP_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPWriteTimeout, err = getEnvPositiveDuration("FH_HTTP_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPIdleTimeout, err = getEnvPositiveDuration("FH_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.ShutdownTimeout, err = getEnvPositiveDuration("FH_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	// Пустое значение — имя владельца пода выводится из hostname при запуске
	cfg.ServiceID = getEnvDefault("FH_SERVICE_ID", "")
	cfg.DephealthGroup = getEnvDefault("FH_DEPHEALTH_GROUP", "filehost")

	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("FH_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// TLSEnabled сообщает, задан ли TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой на положительное значение.
// Ошибка уже содержит имя переменной.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным", key)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
