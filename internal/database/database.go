// Пакет database - пул pgx для таблицы метаданных, встроенные миграции
// схемы file_metadata и проверка готовности для /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // драйвер pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LadnoSam/data-query-lib/internal/config"
)

// applicationName видна в pg_stat_activity.
const applicationName = "data-query"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect открывает пул и проверяет его ping-ом.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN PostgreSQL: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL недоступен: %w", err)
	}

	logger.Info("Пул PostgreSQL открыт",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.String("table", cfg.DBTable),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate создаёт или обновляет таблицу file_metadata.
// Повторный запуск на актуальной схеме ничего не меняет.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Схема метаданных уже актуальна")
	case err != nil:
		return fmt.Errorf("применение миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Схема метаданных готова",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateURL - адрес для драйвера pgx5 golang-migrate.
// Учётные данные кодируются как userinfo, а не как query.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// ReadinessChecker сообщает о готовности хранилища метаданных:
// PostgreSQL отвечает и рабочая таблица существует.
type ReadinessChecker struct {
	pool  *pgxpool.Pool
	table string
}

// NewReadinessChecker создаёт проверку для таблицы table.
func NewReadinessChecker(pool *pgxpool.Pool, table string) *ReadinessChecker {
	// имя экранируется так же, как в запросах репозитория
	return &ReadinessChecker{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// CheckReady возвращает "fail", если PostgreSQL недоступен
// или таблица метаданных не создана.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var exists bool
	if err := c.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, c.table).Scan(&exists); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	if !exists {
		return "fail", fmt.Sprintf("таблица %s не найдена", c.table)
	}
	return "ok", "таблица метаданных доступна"
}
