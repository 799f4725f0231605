// Пакет config - загрузка и валидация конфигурации data-query
// из переменных окружения. Конфигурация неизменяема после старта.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LadnoSam/data-query-lib/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Режимы запуска.
const (
	// ModeAll - ингест при старте, затем HTTP-сервер
	ModeAll = "all"
	// ModeIngest - однократный ингест и выход
	ModeIngest = "ingest"
	// ModeServe - только HTTP-сервер
	ModeServe = "serve"
)

// Config содержит все параметры конфигурации data-query.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Режим запуска: all, ingest, serve
	Mode string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Таблица метаданных
	DBTable string
	// Применять ли встроенные миграции при старте
	DBMigrate bool
	// Имена столбцов таблицы метаданных
	Columns model.Columns

	// --- Объектное хранилище (S3/MinIO) ---

	// host:port без схемы
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Bucket    string
	// Создавать бакет при старте, если он отсутствует
	S3CreateBucket bool

	// --- Ингест ---

	// Директория с исходными файлами
	SourceDir string
	// Владелец, записываемый в метаданные
	Owner string
	// Интервал периодического ингеста (0 - выключен)
	IngestInterval time.Duration

	// --- Поиск ---

	// Часовой пояс для отображения upload_timestamp
	DisplayLocation *time.Location
	// Размер LRU-кэша результатов поиска (0 - кэш выключен)
	QueryCacheSize int
	// TTL записи кэша результатов поиска
	QueryCacheTTL time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:funlen,gocyclo // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DQ_PORT - порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("DQ_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("DQ_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DQ_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DQ_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DQ_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DQ_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DQ_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.Mode = getEnvDefault("DQ_MODE", ModeAll)
	switch cfg.Mode {
	case ModeAll, ModeIngest, ModeServe:
	default:
		return nil, fmt.Errorf("DQ_MODE: недопустимый режим %q, допустимые: all, ingest, serve", cfg.Mode)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("DQ_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("DQ_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("DQ_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("DQ_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("DQ_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DQ_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("DQ_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("DQ_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("DQ_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("DQ_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DQ_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// DQ_DB_TABLE - таблица метаданных (по умолчанию file_metadata)
	cfg.DBTable = getEnvDefault("DQ_DB_TABLE", "file_metadata")
	if err := model.ValidateIdentifier(cfg.DBTable); err != nil {
		return nil, fmt.Errorf("DQ_DB_TABLE: %w", err)
	}

	cfg.DBMigrate, err = getEnvBool("DQ_DB_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("DQ_DB_MIGRATE: %w", err)
	}

	cfg.Columns = loadColumns()
	if err := cfg.Columns.Validate(); err != nil {
		return nil, fmt.Errorf("DQ_COLUMN_*: %w", err)
	}
	// Миграция создаёт таблицу с именами по умолчанию
	if cfg.DBMigrate && (cfg.Columns != model.DefaultColumns() || cfg.DBTable != "file_metadata") {
		return nil, fmt.Errorf("DQ_DB_MIGRATE: встроенная миграция несовместима с переопределёнными именами таблицы/столбцов, задайте DQ_DB_MIGRATE=false")
	}

	// --- Объектное хранилище ---

	if cfg.S3Endpoint, err = getEnvRequired("DQ_S3_ENDPOINT"); err != nil {
		return nil, err
	}
	if strings.Contains(cfg.S3Endpoint, "://") {
		return nil, fmt.Errorf("DQ_S3_ENDPOINT: ожидается host:port без схемы, получено %q", cfg.S3Endpoint)
	}
	if cfg.S3AccessKey, err = getEnvRequired("DQ_S3_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3SecretKey, err = getEnvRequired("DQ_S3_SECRET_KEY"); err != nil {
		return nil, err
	}
	cfg.S3UseSSL, err = getEnvBool("DQ_S3_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("DQ_S3_USE_SSL: %w", err)
	}
	if cfg.S3Bucket, err = getEnvRequired("DQ_S3_BUCKET"); err != nil {
		return nil, err
	}
	cfg.S3CreateBucket, err = getEnvBool("DQ_S3_CREATE_BUCKET", true)
	if err != nil {
		return nil, fmt.Errorf("DQ_S3_CREATE_BUCKET: %w", err)
	}

	// --- Ингест ---

	if cfg.SourceDir, err = getEnvRequired("DQ_SOURCE_DIR"); err != nil {
		return nil, err
	}
	cfg.Owner = getEnvDefault("DQ_OWNER", model.DefaultOwner)
	cfg.IngestInterval, err = getEnvDuration("DQ_INGEST_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("DQ_INGEST_INTERVAL: %w", err)
	}
	if cfg.IngestInterval < 0 {
		return nil, fmt.Errorf("DQ_INGEST_INTERVAL: значение не может быть отрицательным")
	}

	// --- Поиск ---

	tz := getEnvDefault("DQ_DISPLAY_TIMEZONE", "UTC")
	cfg.DisplayLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("DQ_DISPLAY_TIMEZONE: неизвестный часовой пояс %q: %w", tz, err)
	}
	cfg.QueryCacheSize, err = getEnvInt("DQ_QUERY_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("DQ_QUERY_CACHE_SIZE: %w", err)
	}
	if cfg.QueryCacheSize < 0 {
		return nil, fmt.Errorf("DQ_QUERY_CACHE_SIZE: значение не может быть отрицательным")
	}
	cfg.QueryCacheTTL, err = getEnvDuration("DQ_QUERY_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_QUERY_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("DQ_DEPHEALTH_GROUP", "data-query")
	cfg.DephealthCheckInterval, err = getEnvDuration("DQ_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("DQ_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DQ_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadColumns читает DQ_COLUMN_<FIELD> для каждого поля маппинга.
func loadColumns() model.Columns {
	d := model.DefaultColumns()
	return model.Columns{
		BucketName:            getEnvDefault("DQ_COLUMN_BUCKET_NAME", d.BucketName),
		StorageAddress:        getEnvDefault("DQ_COLUMN_STORAGE_ADDRESS", d.StorageAddress),
		Owner:                 getEnvDefault("DQ_COLUMN_OWNER", d.Owner),
		FileName:              getEnvDefault("DQ_COLUMN_FILE_NAME", d.FileName),
		FileSize:              getEnvDefault("DQ_COLUMN_FILE_SIZE", d.FileSize),
		UploadTimestamp:       getEnvDefault("DQ_COLUMN_UPLOAD_TIMESTAMP", d.UploadTimestamp),
		HashChecksum:          getEnvDefault("DQ_COLUMN_HASH_CHECKSUM", d.HashChecksum),
		LastModifiedTimestamp: getEnvDefault("DQ_COLUMN_LAST_MODIFIED_TIMESTAMP", d.LastModifiedTimestamp),
		ContentType:           getEnvDefault("DQ_COLUMN_CONTENT_TYPE", d.ContentType),
	}
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// S3URL возвращает URL объектного хранилища со схемой.
func (c *Config) S3URL() string {
	if c.S3UseSSL {
		return "https://" + c.S3Endpoint
	}
	return "http://" + c.S3Endpoint
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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
