// query.go - сервис поиска метаданных по фильтрам.
// Разбирает и валидирует фильтры, обращается к репозиторию и кэшу,
// форматирует строки результата.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LadnoSam/data-query-lib/internal/repository"
)

// DisplayLayout - формат upload_timestamp в ответе.
const DisplayLayout = "2006-01-02 15:04:05 MST"

// Prometheus-метрики поиска.
var (
	queryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dq_query_total",
		Help: "Общее количество поисковых запросов.",
	})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dq_query_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// FilterInput - сырые значения полей формы. Пустая строка - фильтр не задан.
type FilterInput struct {
	FileName     string
	ContentType  string
	UploadedFrom string
	UploadedTo   string
}

// FileView - строка ответа поиска.
type FileView struct {
	FileName        string `json:"file_name"`
	ContentType     string `json:"content_type"`
	UploadTimestamp string `json:"upload_timestamp"`
}

// QueryService - сервис поиска метаданных.
type QueryService struct {
	repo     repository.MetadataRepository
	cache    *QueryCache
	location *time.Location
	logger   *slog.Logger
}

// NewQueryService создаёт сервис поиска.
// cache может быть nil; location nil означает UTC.
func NewQueryService(
	repo repository.MetadataRepository,
	cache *QueryCache,
	location *time.Location,
	logger *slog.Logger,
) *QueryService {
	if location == nil {
		location = time.UTC
	}
	return &QueryService{
		repo:     repo,
		cache:    cache,
		location: location,
		logger:   logger.With(slog.String("component", "query_service")),
	}
}

// Query выполняет поиск по фильтрам.
// Некорректный фильтр возвращает ошибку, обёртывающую ErrInvalidFilter.
func (s *QueryService) Query(ctx context.Context, in FilterInput) ([]FileView, error) {
	start := time.Now()
	queryTotal.Inc()

	filters, err := ParseFilters(in)
	if err != nil {
		return nil, err
	}

	if views, ok := s.cache.Get(filters); ok {
		queryDuration.Observe(time.Since(start).Seconds())
		s.logger.Debug("Кэш hit для поиска", slog.Int("returned", len(views)))
		return views, nil
	}

	// поколение снимается до чтения: результат, прочитанный до Purge, не кэшируется
	generation := s.cache.Generation()
	rows, err := s.repo.Search(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("поиск метаданных: %w", err)
	}

	views := make([]FileView, 0, len(rows))
	for _, r := range rows {
		v := FileView{FileName: r.FileName, ContentType: r.ContentType}
		if !r.UploadTimestamp.IsZero() {
			v.UploadTimestamp = r.UploadTimestamp.In(s.location).Format(DisplayLayout)
		}
		views = append(views, v)
	}
	s.cache.Set(filters, views, generation)

	duration := time.Since(start)
	queryDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.String("file_name", filters.FileName),
		slog.String("content_type", filters.ContentType),
		slog.Int("returned", len(views)),
		slog.Duration("duration", duration),
	)

	return views, nil
}

// ParseFilters переводит значения формы в фильтры репозитория.
// Даты принимаются только в формате YYYY-MM-DD (UTC): нижняя граница -
// начало дня, верхняя - последняя микросекунда дня.
func ParseFilters(in FilterInput) (repository.QueryFilters, error) {
	f := repository.QueryFilters{
		FileName:    in.FileName,
		ContentType: in.ContentType,
	}

	from, err := parseDateBound("upload_timestamp_from", in.UploadedFrom, false)
	if err != nil {
		return f, err
	}
	to, err := parseDateBound("upload_timestamp_to", in.UploadedTo, true)
	if err != nil {
		return f, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return f, fmt.Errorf("%w: upload_timestamp_to раньше upload_timestamp_from", ErrInvalidFilter)
	}

	f.UploadedFrom = from
	f.UploadedTo = to
	return f, nil
}

// parseDateBound разбирает дату. Пустое значение - nil без ошибки.
func parseDateBound(field, value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q, ожидается формат YYYY-MM-DD", ErrInvalidFilter, field, value)
	}
	if endOfDay {
		// timestamptz хранит микросекунды
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
