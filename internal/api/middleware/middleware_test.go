package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/submit", "/submit"},
		{"/api/v1/ingest", "/api/v1/ingest"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
		{"/wp-admin/setup.php", "other"},
		{"/submit/extra", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, ожидался %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestRequestLogger_Levels проверяет уровень логирования по статус-коду.
func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusBadRequest, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submit", nil))

			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("лог %q не содержит %q", out, tt.level)
			}
			if !strings.Contains(out, "bytes=4") {
				t.Errorf("лог %q не содержит размер ответа", out)
			}
			if rec.Code != tt.status {
				t.Errorf("status = %d, ожидался %d", rec.Code, tt.status)
			}
		})
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	h := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, ожидался %d", rec.Code, http.StatusTeapot)
	}
}

// TestRecover_WritesJSONError - паника превращается в 500 с телом в едином формате.
func TestRecover_WritesJSONError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submit", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, ожидался 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `{"error":{"code":"INTERNAL_ERROR","message":"nothing to show"}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, ожидалось %s", got, want)
	}
	if !strings.Contains(buf.String(), "panic=boom") {
		t.Errorf("лог %q не содержит значение паники", buf.String())
	}
}

// TestRecover_ReraisesAbortHandler - http.ErrAbortHandler не перехватывается.
func TestRecover_ReraisesAbortHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recover() = %v, ожидался http.ErrAbortHandler", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// TestRequestLogger_RequestIDAndFilters - request_id возвращается клиенту,
// а фильтры /submit попадают в запись лога.
func TestRequestLogger_RequestIDAndFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := chimiddleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submit?file_name=report&content_type=csv", nil))

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("ответ не содержит X-Request-Id")
	}
	out := buf.String()
	for _, want := range []string{"request_id=", "filters.file_name=report", "filters.content_type=csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("лог %q не содержит %q", out, want)
		}
	}
}

// TestRequestLogger_ImplicitOK - обработчик без записи ответа логируется как 200.
func TestRequestLogger_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("лог %q не содержит status=200", buf.String())
	}
	if strings.Contains(buf.String(), "filters.") {
		t.Errorf("фильтры в логе для пути /: %q", buf.String())
	}
}
