// Пакет errors - тела ошибок HTTP API data-query.
// Любой неуспешный ответ JSON-эндпоинтов имеет вид
// {"error": {"code": "...", "message": "..."}}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Code - машиночитаемый код ошибки.
type Code string

const (
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeConflict        Code = "CONFLICT"
	CodeInternalError   Code = "INTERNAL_ERROR"
)

// MsgNothingToShow - единственное сообщение, которое клиент видит при
// непредвиденном сбое поиска. Причина остаётся только в логе.
const MsgNothingToShow = "nothing to show"

// Body - тело ответа с ошибкой.
type Body struct {
	Error Detail `json:"error"`
}

// Detail - содержимое поля error.
type Detail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// WriteError отвечает статусом statusCode и телом Body.
func WriteError(w http.ResponseWriter, statusCode int, code Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Body{Error: Detail{Code: code, Message: message}})
}

// ValidationError - 400: фильтр формы не прошёл проверку.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Conflict - 409: ингест уже выполняется.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InternalError - 500 с произвольным сообщением.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// NothingToShow - 500 без деталей: ответ поиска на любую ошибку,
// кроме некорректного фильтра, и на панику обработчика.
func NothingToShow(w http.ResponseWriter) {
	InternalError(w, MsgNothingToShow)
}
