// ingest.go - сервис ингеста локальной директории.
//
// Для каждого файла директории (без рекурсии, в лексическом порядке):
//  1. Определение Content-Type по расширению (нераспознанные пропускаются)
//  2. MD5 и размер содержимого
//  3. Сборка метаданных с единой отметкой времени
//  4. Загрузка содержимого в бакет под ключом file_name
//  5. Upsert строки метаданных по storage_address
//
// Ошибка одного файла не прерывает запуск. Повторный запуск идемпотентен:
// upload_timestamp сохраняется, checksum и last_modified обновляются.
// Может запускаться периодически (DQ_INGEST_INTERVAL).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LadnoSam/data-query-lib/internal/domain/model"
	"github.com/LadnoSam/data-query-lib/internal/repository"
	"github.com/LadnoSam/data-query-lib/internal/storage/filescan"
)

// Prometheus-метрики ингеста.
var (
	ingestRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dq_ingest_runs_total",
		Help: "Общее количество запусков ингеста",
	})

	// ingestFilesTotal - файлы по результату обработки: ingested, skipped, failed.
	ingestFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dq_ingest_files_total",
		Help: "Общее количество обработанных файлов по результату",
	}, []string{"result"})

	ingestRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dq_ingest_run_duration_seconds",
		Help:    "Длительность запуска ингеста в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// ObjectStore - запись объектов в бакет.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64,
		contentType string, metadata map[string]string) error
}

// IngestOptions - параметры ингеста.
type IngestOptions struct {
	// Bucket - бакет назначения
	Bucket string
	// Owner - владелец в метаданных (пусто - model.DefaultOwner)
	Owner string
	// SourceDir - директория для периодического запуска
	SourceDir string
	// Interval - период запуска (0 - планировщик выключен)
	Interval time.Duration
}

// IngestResult - результат одного запуска.
type IngestResult struct {
	RunID    string        `json:"run_id"`
	Scanned  int           `json:"scanned"`
	Ingested int           `json:"ingested"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
}

// IngestService - сервис ингеста директории.
type IngestService struct {
	store  ObjectStore
	repo   repository.MetadataRepository
	cache  *QueryCache
	opts   IngestOptions
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex // запуски не пересекаются
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIngestService создаёт сервис ингеста. cache может быть nil.
func NewIngestService(
	store ObjectStore,
	repo repository.MetadataRepository,
	cache *QueryCache,
	opts IngestOptions,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		store:  store,
		repo:   repo,
		cache:  cache,
		opts:   opts,
		now:    time.Now,
		logger: logger.With(slog.String("component", "ingest")),
	}
}

// Start запускает периодический ингест SourceDir.
// Первый запуск - через Interval; стартовый ингест выполняет вызывающий код.
func (s *IngestService) Start(ctx context.Context) {
	if s.opts.Interval <= 0 {
		s.logger.Info("Периодический ингест выключен")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Периодический ингест запущен",
		slog.String("interval", s.opts.Interval.String()),
		slog.String("source_dir", s.opts.SourceDir),
	)
}

// Stop останавливает планировщик и дожидается завершения текущего запуска.
func (s *IngestService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Периодический ингест остановлен")
}

// run - основной цикл планировщика.
func (s *IngestService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrIngestInProgress) {
					s.logger.Warn("Пропуск планового ингеста: предыдущий запуск не завершён")
					continue
				}
				s.logger.Error("Плановый ингест завершился ошибкой",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce выполняет ингест SourceDir.
func (s *IngestService) RunOnce(ctx context.Context) (*IngestResult, error) {
	return s.IngestDirectory(ctx, s.opts.SourceDir)
}

// IngestDirectory обрабатывает все файлы директории.
// Ошибка возвращается, только если директорию нельзя прочитать
// или другой запуск уже выполняется (ErrIngestInProgress).
func (s *IngestService) IngestDirectory(ctx context.Context, dir string) (*IngestResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrIngestInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()
	result := &IngestResult{RunID: uuid.NewString()}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	logger.Info("Ингест начат",
		slog.String("dir", dir),
		slog.Int("entries", len(entries)),
	)

	for _, entry := range entries {
		result.Scanned++

		switch s.ingestFile(ctx, logger, filepath.Join(dir, entry.Name()), entry.Name()) {
		case fileIngested:
			result.Ingested++
		case fileSkipped:
			result.Skipped++
		case fileFailed:
			result.Failed++
		}
	}

	result.Duration = time.Since(start)

	ingestRunsTotal.Inc()
	ingestFilesTotal.WithLabelValues("ingested").Add(float64(result.Ingested))
	ingestFilesTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	ingestFilesTotal.WithLabelValues("failed").Add(float64(result.Failed))
	ingestRunDuration.Observe(result.Duration.Seconds())

	if result.Ingested > 0 {
		s.cache.Purge()
	}

	logger.Info("Ингест завершён",
		slog.Int("scanned", result.Scanned),
		slog.Int("ingested", result.Ingested),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

type fileOutcome int

const (
	fileIngested fileOutcome = iota
	fileSkipped
	fileFailed
)

// ingestFile проводит один файл через конвейер.
func (s *IngestService) ingestFile(ctx context.Context, logger *slog.Logger, path, name string) fileOutcome {
	contentType, ok := filescan.Classify(path)
	if !ok {
		logger.Debug("Файл пропущен: тип не распознан", slog.String("file_name", name))
		return fileSkipped
	}

	digest, err := filescan.Digest(path)
	if err != nil {
		logger.Warn("Ошибка чтения файла",
			slog.String("file_name", name),
			slog.String("error", err.Error()),
		)
		return fileFailed
	}

	meta := model.BuildFileMetadata(model.BuildParams{
		Bucket:      s.opts.Bucket,
		FileName:    name,
		Owner:       s.opts.Owner,
		Digest:      digest,
		ContentType: contentType,
		Now:         s.now(),
	})

	if err := s.upload(ctx, path, meta); err != nil {
		logger.Error("Ошибка загрузки в объектное хранилище",
			slog.String("file_name", name),
			slog.String("storage_address", meta.StorageAddress),
			slog.String("error", err.Error()),
		)
		return fileFailed
	}

	inserted, err := s.repo.Upsert(ctx, meta)
	if err != nil {
		logger.Error("Ошибка записи метаданных",
			slog.String("file_name", name),
			slog.String("storage_address", meta.StorageAddress),
			slog.String("error", err.Error()),
		)
		return fileFailed
	}

	logger.Info("Файл загружен",
		slog.String("file_name", name),
		slog.Bool("inserted", inserted),
		slog.Group("metadata",
			slog.String("bucket_name", meta.BucketName),
			slog.String("storage_address", meta.StorageAddress),
			slog.String("owner", meta.Owner),
			slog.String("file_name", meta.FileName),
			slog.Int64("file_size", meta.FileSize),
			slog.Time("upload_timestamp", meta.UploadTimestamp),
			slog.String("hash_checksum", meta.HashChecksum),
			slog.Time("last_modified_timestamp", meta.LastModifiedTimestamp),
			slog.String("content_type", meta.ContentType),
		),
	)
	return fileIngested
}

// upload передаёт содержимое файла потоком; размер известен из дайджеста.
func (s *IngestService) upload(ctx context.Context, path string, meta *model.FileMetadata) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer f.Close()

	return s.store.PutObject(ctx, meta.BucketName, meta.FileName, f, meta.FileSize,
		meta.ContentType, meta.ObjectMetadata())
}
