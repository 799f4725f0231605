package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LadnoSam/data-query-lib/internal/domain/model"
)

// UpsertPolicy - политика разрешения конфликта по storage_address.
// Столбцы из Preserve сохраняют уже записанное значение
// (COALESCE(table.col, EXCLUDED.col)), все остальные перезаписываются.
type UpsertPolicy struct {
	Preserve []string
}

// DefaultUpsertPolicy - upload_timestamp сохраняется (first-write-wins),
// остальные столбцы обновляются при каждом запуске.
func DefaultUpsertPolicy(cols model.Columns) UpsertPolicy {
	return UpsertPolicy{Preserve: []string{cols.UploadTimestamp}}
}

func (p UpsertPolicy) preserves(column string) bool {
	for _, c := range p.Preserve {
		if c == column {
			return true
		}
	}
	return false
}

// QueryFilters - фильтры поиска. Пустая строка / nil - фильтр не применяется.
type QueryFilters struct {
	// FileName - подстрока имени файла (без учёта регистра)
	FileName string
	// ContentType - подстрока Content-Type (без учёта регистра)
	ContentType string
	// UploadedFrom - нижняя граница upload_timestamp (включительно)
	UploadedFrom *time.Time
	// UploadedTo - верхняя граница upload_timestamp (включительно)
	UploadedTo *time.Time
}

// Operator - оператор предиката WHERE.
type Operator string

// Поддерживаемые операторы.
const (
	// OpContains - ILIKE по подстроке
	OpContains Operator = "ILIKE"
	// OpGTE - больше или равно
	OpGTE Operator = ">="
	// OpLTE - меньше или равно
	OpLTE Operator = "<="
)

// Predicate - одно условие WHERE: столбец, оператор и связываемое значение.
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

// MetadataRepository - доступ к таблице метаданных файлов.
type MetadataRepository interface {
	// Upsert вставляет или обновляет строку по storage_address.
	// inserted = true, если строка создана впервые.
	Upsert(ctx context.Context, m *model.FileMetadata) (inserted bool, err error)
	// Search возвращает строки, удовлетворяющие всем заданным фильтрам.
	// Порядок строк не гарантируется.
	Search(ctx context.Context, filters QueryFilters) ([]model.FileSummary, error)
	// GetByStorageAddress возвращает полную строку метаданных или ErrNotFound.
	GetByStorageAddress(ctx context.Context, storageAddress string) (*model.FileMetadata, error)
}

// metadataRepo - реализация MetadataRepository через pgx.
type metadataRepo struct {
	db        DBTX
	table     string
	cols      model.Columns
	upsertSQL string
}

// NewMetadataRepository создаёт репозиторий метаданных.
// Имена table и cols должны быть заранее провалидированы (config.Load).
func NewMetadataRepository(db DBTX, table string, cols model.Columns, policy UpsertPolicy) MetadataRepository {
	return &metadataRepo{
		db:        db,
		table:     table,
		cols:      cols,
		upsertSQL: buildUpsertQuery(table, cols, policy),
	}
}

// Upsert выполняет INSERT ... ON CONFLICT DO UPDATE одним оператором
// (отдельный autocommit на каждый файл).
func (r *metadataRepo) Upsert(ctx context.Context, m *model.FileMetadata) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, r.upsertSQL,
		m.BucketName,
		m.StorageAddress,
		m.Owner,
		m.FileName,
		m.FileSizeString(),
		m.UploadTimestamp,
		m.HashChecksum,
		m.LastModifiedTimestamp,
		m.ContentType,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("ошибка upsert метаданных %s: %w", m.StorageAddress, err)
	}
	return inserted, nil
}

// Search выполняет поиск с динамическими фильтрами.
func (r *metadataRepo) Search(ctx context.Context, filters QueryFilters) ([]model.FileSummary, error) {
	where, args := renderWhere(BuildPredicates(r.cols, filters), 1)

	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s`,
		quoteIdent(r.cols.FileName),
		quoteIdent(r.cols.UploadTimestamp),
		quoteIdent(r.cols.ContentType),
		quoteIdent(r.table),
	)
	if where != "" {
		query += " " + where
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска метаданных: %w", err)
	}
	defer rows.Close()

	result := make([]model.FileSummary, 0)
	for rows.Next() {
		var (
			name        string
			uploadedAt  *time.Time
			contentType *string
		)
		if err := rows.Scan(&name, &uploadedAt, &contentType); err != nil {
			return nil, fmt.Errorf("ошибка сканирования метаданных: %w", err)
		}

		s := model.FileSummary{FileName: name}
		if uploadedAt != nil {
			s.UploadTimestamp = *uploadedAt
		}
		if contentType != nil {
			s.ContentType = *contentType
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// GetByStorageAddress возвращает строку метаданных по storage_address.
func (r *metadataRepo) GetByStorageAddress(ctx context.Context, storageAddress string) (*model.FileMetadata, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		quoteIdentList(r.cols.Ordered()),
		quoteIdent(r.table),
		quoteIdent(r.cols.StorageAddress),
	)

	m := &model.FileMetadata{}
	var size string
	err := r.db.QueryRow(ctx, query, storageAddress).Scan(
		&m.BucketName, &m.StorageAddress, &m.Owner, &m.FileName, &size,
		&m.UploadTimestamp, &m.HashChecksum, &m.LastModifiedTimestamp, &m.ContentType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения метаданных %s: %w", storageAddress, err)
	}

	m.FileSize, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный file_size %q у %s: %w", size, storageAddress, err)
	}
	return m, nil
}

// buildUpsertQuery строит INSERT ... ON CONFLICT по storage_address согласно политике.
// RETURNING (xmax = 0) отличает вставку от обновления.
func buildUpsertQuery(table string, cols model.Columns, policy UpsertPolicy) string {
	ordered := cols.Ordered()
	t := quoteIdent(table)

	placeholders := make([]string, 0, len(ordered))
	sets := make([]string, 0, len(ordered))
	for i, c := range ordered {
		q := quoteIdent(c)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))

		if c == cols.StorageAddress {
			continue
		}
		if policy.preserves(c) {
			sets = append(sets, fmt.Sprintf("%s = COALESCE(%s.%s, EXCLUDED.%s)", q, t, q, q))
		} else {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
	}

	return fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted`,
		t,
		quoteIdentList(ordered),
		strings.Join(placeholders, ", "),
		quoteIdent(cols.StorageAddress),
		strings.Join(sets, ", "),
	)
}

// BuildPredicates переводит фильтры в список предикатов.
// Каждому заданному фильтру соответствует ровно один предикат.
func BuildPredicates(cols model.Columns, f QueryFilters) []Predicate {
	var preds []Predicate

	if f.FileName != "" {
		preds = append(preds, Predicate{Column: cols.FileName, Op: OpContains, Value: containsPattern(f.FileName)})
	}
	if f.ContentType != "" {
		preds = append(preds, Predicate{Column: cols.ContentType, Op: OpContains, Value: containsPattern(f.ContentType)})
	}
	if f.UploadedFrom != nil {
		preds = append(preds, Predicate{Column: cols.UploadTimestamp, Op: OpGTE, Value: *f.UploadedFrom})
	}
	if f.UploadedTo != nil {
		preds = append(preds, Predicate{Column: cols.UploadTimestamp, Op: OpLTE, Value: *f.UploadedTo})
	}

	return preds
}

// renderWhere строит WHERE-условие из предикатов, объединённых AND.
// startArg - номер первого $-параметра. Без предикатов возвращает пустую строку.
func renderWhere(preds []Predicate, startArg int) (whereClause string, args []any) {
	if len(preds) == 0 {
		return "", nil
	}

	conditions := make([]string, 0, len(preds))
	args = make([]any, 0, len(preds))
	for i, p := range preds {
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", quoteIdent(p.Column), p.Op, startArg+i))
		args = append(args, p.Value)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// likeEscaper экранирует метасимволы LIKE, чтобы ввод искался как подстрока.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern возвращает шаблон ILIKE для поиска подстроки.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
