package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LadnoSam/data-query-lib/internal/domain/model"
	"github.com/LadnoSam/data-query-lib/internal/repository"
)

// --- Тесты ParseFilters ---

func TestParseFilters_Empty(t *testing.T) {
	f, err := ParseFilters(FilterInput{})
	if err != nil {
		t.Fatalf("ParseFilters ошибка: %v", err)
	}
	if f.FileName != "" || f.ContentType != "" || f.UploadedFrom != nil || f.UploadedTo != nil {
		t.Errorf("filters = %+v, ожидались пустые фильтры", f)
	}
}

// TestParseFilters_DateBounds проверяет нормализацию границ дня.
func TestParseFilters_DateBounds(t *testing.T) {
	f, err := ParseFilters(FilterInput{UploadedFrom: "2024-01-01", UploadedTo: "2024-01-31"})
	if err != nil {
		t.Fatalf("ParseFilters ошибка: %v", err)
	}

	wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC)
	if !f.UploadedFrom.Equal(wantFrom) {
		t.Errorf("UploadedFrom = %v, ожидался %v", f.UploadedFrom, wantFrom)
	}
	if !f.UploadedTo.Equal(wantTo) {
		t.Errorf("UploadedTo = %v, ожидался %v", f.UploadedTo, wantTo)
	}
}

// TestParseFilters_SameDay - одинаковые границы дают целый день.
func TestParseFilters_SameDay(t *testing.T) {
	f, err := ParseFilters(FilterInput{UploadedFrom: "2024-02-29", UploadedTo: "2024-02-29"})
	if err != nil {
		t.Fatalf("ParseFilters ошибка: %v", err)
	}
	if got := f.UploadedTo.Sub(*f.UploadedFrom); got != 24*time.Hour-time.Microsecond {
		t.Errorf("длина диапазона = %v", got)
	}
}

func TestParseFilters_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   FilterInput
	}{
		{"слэши", FilterInput{UploadedFrom: "2024/01/01"}},
		{"с временем", FilterInput{UploadedTo: "2024-01-01T10:00:00"}},
		{"несуществующая дата", FilterInput{UploadedFrom: "2024-02-30"}},
		{"мусор", FilterInput{UploadedTo: "yesterday"}},
		{"обратный диапазон", FilterInput{UploadedFrom: "2024-02-01", UploadedTo: "2024-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilters(tt.in)
			if !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("err = %v, ожидался ErrInvalidFilter", err)
			}
		})
	}
}

// --- Тесты QueryService ---

// TestQueryService_Query проверяет передачу фильтров и форматирование строк.
func TestQueryService_Query(t *testing.T) {
	uploaded := time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)
	repo := newMockMetadataRepo()
	repo.searchFn = func(_ context.Context, f repository.QueryFilters) ([]model.FileSummary, error) {
		if f.FileName != "report" {
			t.Errorf("FileName = %q, ожидался report", f.FileName)
		}
		if f.UploadedFrom == nil || f.UploadedTo != nil {
			t.Errorf("границы = %v / %v", f.UploadedFrom, f.UploadedTo)
		}
		return []model.FileSummary{
			{FileName: "report.csv", UploadTimestamp: uploaded, ContentType: "text/csv"},
			{FileName: "report-null.csv"},
		}, nil
	}

	svc := NewQueryService(repo, nil, nil, testLogger())
	views, err := svc.Query(context.Background(), FilterInput{FileName: "report", UploadedFrom: "2024-01-01"})
	if err != nil {
		t.Fatalf("Query ошибка: %v", err)
	}

	if len(views) != 2 {
		t.Fatalf("len(views) = %d, ожидалось 2", len(views))
	}
	want := FileView{FileName: "report.csv", ContentType: "text/csv", UploadTimestamp: "2024-01-15 12:30:00 UTC"}
	if views[0] != want {
		t.Errorf("views[0] = %+v, ожидался %+v", views[0], want)
	}
	if views[1].UploadTimestamp != "" {
		t.Errorf("views[1].UploadTimestamp = %q, ожидалась пустая строка", views[1].UploadTimestamp)
	}
}

// TestQueryService_DisplayLocation проверяет отображение в заданном часовом поясе.
func TestQueryService_DisplayLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	repo := newMockMetadataRepo()
	repo.searchFn = func(context.Context, repository.QueryFilters) ([]model.FileSummary, error) {
		return []model.FileSummary{
			{FileName: "a.json", UploadTimestamp: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)},
		}, nil
	}

	svc := NewQueryService(repo, nil, loc, testLogger())
	views, err := svc.Query(context.Background(), FilterInput{})
	if err != nil {
		t.Fatalf("Query ошибка: %v", err)
	}
	if views[0].UploadTimestamp != "2024-01-02 01:00:00 MSK" {
		t.Errorf("UploadTimestamp = %q", views[0].UploadTimestamp)
	}
}

// TestQueryService_EmptyResult - пустой результат сериализуется как [], а не null.
func TestQueryService_EmptyResult(t *testing.T) {
	svc := NewQueryService(newMockMetadataRepo(), nil, nil, testLogger())

	views, err := svc.Query(context.Background(), FilterInput{ContentType: "xml"})
	if err != nil {
		t.Fatalf("Query ошибка: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("views = %#v, ожидался пустой срез", views)
	}
}

// TestQueryService_InvalidFilter - репозиторий не вызывается при ошибке валидации.
func TestQueryService_InvalidFilter(t *testing.T) {
	repo := newMockMetadataRepo()
	svc := NewQueryService(repo, nil, nil, testLogger())

	_, err := svc.Query(context.Background(), FilterInput{UploadedFrom: "01-01-2024"})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("err = %v, ожидался ErrInvalidFilter", err)
	}
	if repo.searches != 0 {
		t.Errorf("searches = %d, ожидался 0", repo.searches)
	}
}

func TestQueryService_RepoError(t *testing.T) {
	repoErr := errors.New("connection reset")
	repo := newMockMetadataRepo()
	repo.searchFn = func(context.Context, repository.QueryFilters) ([]model.FileSummary, error) {
		return nil, repoErr
	}

	svc := NewQueryService(repo, nil, nil, testLogger())
	_, err := svc.Query(context.Background(), FilterInput{})
	if !errors.Is(err, repoErr) {
		t.Errorf("err = %v, ожидалась обёрнутая ошибка репозитория", err)
	}
	if errors.Is(err, ErrInvalidFilter) {
		t.Error("ошибка репозитория не должна быть ErrInvalidFilter")
	}
}

// TestQueryService_UsesCache - повторный запрос обслуживается кэшем.
func TestQueryService_UsesCache(t *testing.T) {
	repo := newMockMetadataRepo()
	repo.searchFn = func(context.Context, repository.QueryFilters) ([]model.FileSummary, error) {
		return []model.FileSummary{{FileName: "cached.csv"}}, nil
	}

	svc := NewQueryService(repo, NewQueryCache(10, time.Minute), nil, testLogger())
	in := FilterInput{FileName: "cached", UploadedTo: "2024-01-01"}

	for i := 0; i < 3; i++ {
		views, err := svc.Query(context.Background(), in)
		if err != nil {
			t.Fatalf("Query #%d ошибка: %v", i, err)
		}
		if len(views) != 1 || views[0].FileName != "cached.csv" {
			t.Errorf("Query #%d views = %+v", i, views)
		}
	}
	if repo.searches != 1 {
		t.Errorf("searches = %d, ожидался 1", repo.searches)
	}
}

// TestQueryService_PurgeDuringSearch - ингест, завершившийся во время чтения,
// не оставляет в кэше устаревший результат.
func TestQueryService_PurgeDuringSearch(t *testing.T) {
	cache := NewQueryCache(10, time.Minute)
	repo := newMockMetadataRepo()
	purged := false
	repo.searchFn = func(context.Context, repository.QueryFilters) ([]model.FileSummary, error) {
		if !purged {
			purged = true
			cache.Purge()
			return []model.FileSummary{{FileName: "old.csv"}}, nil
		}
		return []model.FileSummary{{FileName: "old.csv"}, {FileName: "new.csv"}}, nil
	}

	svc := NewQueryService(repo, cache, nil, testLogger())
	if _, err := svc.Query(context.Background(), FilterInput{}); err != nil {
		t.Fatalf("Query ошибка: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, ожидался 0", cache.Len())
	}

	views, err := svc.Query(context.Background(), FilterInput{})
	if err != nil {
		t.Fatalf("Query ошибка: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("views = %+v, ожидался свежий результат", views)
	}
	if repo.searches != 2 {
		t.Errorf("searches = %d, ожидалось 2", repo.searches)
	}
}

// TestQueryService_DurationOnCacheHit - длительность учитывается и для кэша.
func TestQueryService_DurationOnCacheHit(t *testing.T) {
	svc := NewQueryService(newMockMetadataRepo(), NewQueryCache(10, time.Minute), nil, testLogger())
	in := FilterInput{FileName: "duration-hit"}

	before := queryDurationSamples(t)
	for i := 0; i < 2; i++ {
		if _, err := svc.Query(context.Background(), in); err != nil {
			t.Fatalf("Query #%d ошибка: %v", i, err)
		}
	}
	if got := queryDurationSamples(t) - before; got != 2 {
		t.Errorf("прирост dq_query_duration_seconds = %d, ожидалось 2", got)
	}
}

func queryDurationSamples(t *testing.T) uint64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather ошибка: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "dq_query_duration_seconds" && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}
