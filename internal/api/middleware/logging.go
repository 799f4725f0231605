// logging.go - журнал HTTP-запросов data-query.
// Каждый запрос получает request_id (chi RequestID), который
// возвращается клиенту в заголовке X-Request-Id и попадает в лог.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader - заголовок ответа с идентификатором запроса.
const RequestIDHeader = "X-Request-Id"

// RequestLogger пишет одну запись на запрос. Уровень выбирается по статусу:
// 5xx - ERROR, 4xx - WARN, остальное - INFO.
// Для /submit в запись попадают значения фильтров, чтобы медленные
// и пустые поиски можно было воспроизвести.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chimiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set(RequestIDHeader, reqID)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			attrs := []slog.Attr{
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if r.URL.Path == "/submit" {
				attrs = append(attrs, filterAttrs(r))
			}

			logger.LogAttrs(r.Context(), levelFor(status), "HTTP запрос", attrs...)
		})
	}
}

// statusOf возвращает статус ответа. Обработчик, не записавший
// ни заголовков, ни тела, отвечает 200.
func statusOf(ww chimiddleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// filterAttrs - поля формы поиска. Тело формы уже разобрано обработчиком.
func filterAttrs(r *http.Request) slog.Attr {
	return slog.Group("filters",
		slog.String("file_name", r.Form.Get("file_name")),
		slog.String("content_type", r.Form.Get("content_type")),
		slog.String("upload_timestamp_from", r.Form.Get("upload_timestamp_from")),
		slog.String("upload_timestamp_to", r.Form.Get("upload_timestamp_to")),
	)
}
