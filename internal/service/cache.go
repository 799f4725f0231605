// Пакет service - бизнес-логика data-query: ингест директории,
// поиск метаданных, кэш результатов и мониторинг зависимостей.
package service

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LadnoSam/data-query-lib/internal/repository"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dq_query_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов поиска.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dq_query_cache_misses_total",
		Help: "Общее количество промахов кэша результатов поиска.",
	})
)

// QueryCache - LRU-кэш результатов поиска с TTL.
// Ключ - нормализованный набор фильтров. nil-кэш допустим и ничего не хранит.
//
// Каждый Purge увеличивает поколение кэша. Результат, прочитанный из БД
// до Purge, не сохраняется после него (см. Generation и Set).
type QueryCache struct {
	cache *expirable.LRU[string, []FileView]

	mu         sync.Mutex
	generation uint64
}

// NewQueryCache создаёт кэш. При maxSize <= 0 возвращает nil (кэш выключен).
func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		return nil
	}
	return &QueryCache{cache: expirable.NewLRU[string, []FileView](maxSize, nil, ttl)}
}

// Get возвращает результат по фильтрам. Обновляет метрики hit/miss.
func (c *QueryCache) Get(filters repository.QueryFilters) ([]FileView, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(cacheKey(filters))
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Generation возвращает текущее поколение кэша.
// Снимается до обращения к БД и передаётся в Set.
func (c *QueryCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Set сохраняет результат поиска, если с момента снятия generation
// кэш не очищался. Возвращает true, если результат сохранён.
func (c *QueryCache) Set(filters repository.QueryFilters, views []FileView, generation uint64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.cache.Add(cacheKey(filters), views)
	return true
}

// Purge очищает кэш и начинает новое поколение.
// Вызывается после ингеста, изменившего таблицу.
func (c *QueryCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache.Purge()
}

// Len - количество записей в кэше.
func (c *QueryCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// cacheKey строит ключ из фильтров. Границы дат уже нормализованы до UTC.
func cacheKey(f repository.QueryFilters) string {
	parts := []string{f.FileName, f.ContentType, "", ""}
	if f.UploadedFrom != nil {
		parts[2] = f.UploadedFrom.UTC().Format(time.RFC3339Nano)
	}
	if f.UploadedTo != nil {
		parts[3] = f.UploadedTo.UTC().Format(time.RFC3339Nano)
	}
	return strings.Join(parts, "\x00")
}
