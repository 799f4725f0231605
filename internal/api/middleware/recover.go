package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/LadnoSam/data-query-lib/internal/api/errors"
)

// Recover перехватывает панику обработчика, логирует её со стеком
// и отвечает 500 в едином JSON-формате ошибок.
// http.ErrAbortHandler пробрасывается дальше, как в net/http.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("Паника в HTTP-обработчике",
					slog.String("request_id", chimiddleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.NothingToShow(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
