// dephealth.go - интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// data-query мониторит:
//   - PostgreSQL - SQL checker через существующий pgxpool (connection pool mode, critical)
//   - объектное хранилище - HTTP checker к /minio/health/live (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ObjectStoreHealthPath - liveness endpoint MinIO.
const ObjectStoreHealthPath = "/minio/health/live"

// DephealthService - сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID - имя вершины графа текущего приложения
//   - group - имя группы в метриках (DQ_DEPHEALTH_GROUP)
//   - db - *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
//   - pgConnURL - URL PostgreSQL (для лейблов, не для подключения)
//   - objectStoreURL - URL объектного хранилища со схемой
func NewDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	objectStoreURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, objectStoreURL, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	objectStoreURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, objectStoreURL, checkInterval,
		logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	objectStoreURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(pgConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("object-store",
			dephealth.FromURL(objectStoreURL),
			dephealth.WithHTTPHealthPath(ObjectStoreHealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + объектное хранилище)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
