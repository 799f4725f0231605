// main.go - точка входа data-query.
// Режимы (DQ_MODE): all - ингест при старте и HTTP-сервер,
// ingest - однократный ингест и выход, serve - только HTTP-сервер.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/LadnoSam/data-query-lib/internal/api/handlers"
	"github.com/LadnoSam/data-query-lib/internal/api/middleware"
	"github.com/LadnoSam/data-query-lib/internal/config"
	"github.com/LadnoSam/data-query-lib/internal/database"
	"github.com/LadnoSam/data-query-lib/internal/objectstore"
	"github.com/LadnoSam/data-query-lib/internal/repository"
	"github.com/LadnoSam/data-query-lib/internal/server"
	"github.com/LadnoSam/data-query-lib/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("data-query запускается",
		slog.String("version", config.Version),
		slog.String("mode", cfg.Mode),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Применение миграций БД
	if cfg.DBMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Объектное хранилище
	s3, err := objectstore.New(objectstore.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := s3.EnsureBucket(ctx, cfg.S3Bucket, cfg.S3CreateBucket); err != nil {
		logger.Error("Бакет недоступен", slog.String("bucket", cfg.S3Bucket), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Репозиторий и сервисы
	repo := repository.NewMetadataRepository(pool, cfg.DBTable, cfg.Columns, repository.DefaultUpsertPolicy(cfg.Columns))
	cache := service.NewQueryCache(cfg.QueryCacheSize, cfg.QueryCacheTTL)
	querySvc := service.NewQueryService(repo, cache, cfg.DisplayLocation, logger)
	ingestSvc := service.NewIngestService(s3, repo, cache, service.IngestOptions{
		Bucket:    cfg.S3Bucket,
		Owner:     cfg.Owner,
		SourceDir: cfg.SourceDir,
		Interval:  cfg.IngestInterval,
	}, logger)

	// 7. Стартовый ингест
	if cfg.Mode == config.ModeAll || cfg.Mode == config.ModeIngest {
		if _, err := ingestSvc.RunOnce(ctx); err != nil {
			logger.Error("Ошибка ингеста", slog.String("error", err.Error()))
			if cfg.Mode == config.ModeIngest {
				os.Exit(1)
			}
		}
	}
	if cfg.Mode == config.ModeIngest {
		logger.Info("data-query остановлен")
		return
	}

	// 8. Периодический ингест
	ingestSvc.Start(ctx)

	// 9. topologymetrics - мониторинг зависимостей (PostgreSQL + объектное хранилище)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	dephealthSvc, err := service.NewDephealthService(
		"data-query",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3URL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	}

	// 10. HTTP-сервер
	apiHandler := handlers.NewHandler(querySvc, ingestSvc, logger)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool, cfg.DBTable),
		objectstore.NewReadinessChecker(s3, cfg.S3Bucket),
	)
	srv := server.New(cfg, logger, apiHandler, healthHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	ingestSvc.Stop()

	logger.Info("data-query остановлен")
}
