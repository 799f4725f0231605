// errors.go - ошибки сервисного слоя.
package service

import "errors"

var (
	// ErrInvalidFilter - некорректный фильтр поиска (ошибка валидации, HTTP 400).
	ErrInvalidFilter = errors.New("некорректный фильтр")
	// ErrIngestInProgress - запуск ингеста уже выполняется.
	ErrIngestInProgress = errors.New("ингест уже выполняется")
)
