// Пакет repository - SQL поверх таблицы метаданных файлов.
// Таблица и столбцы настраиваются (DQ_DB_TABLE, DQ_COL_*), поэтому их имена
// попадают в текст запроса только через quoteIdent, а значения фильтров
// и строк - только через $-параметры.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound - строки с таким storage_address нет.
var ErrNotFound = errors.New("метаданные не найдены")

// DBTX - то, что нужно репозиторию от подключения.
// Подходят *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quoteIdentList - "a", "b", "c" для списков столбцов.
func quoteIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
