// Пакет handlers - HTTP-обработчики data-query: форма поиска,
// поиск по фильтрам, ручной запуск ингеста и health endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/LadnoSam/data-query-lib/internal/api/errors"
	"github.com/LadnoSam/data-query-lib/internal/config"
	"github.com/LadnoSam/data-query-lib/internal/service"
	"github.com/LadnoSam/data-query-lib/internal/ui/pages"
)

// Querier - поиск метаданных по значениям формы.
type Querier interface {
	Query(ctx context.Context, in service.FilterInput) ([]service.FileView, error)
}

// Ingester - запуск ингеста исходной директории.
type Ingester interface {
	RunOnce(ctx context.Context) (*service.IngestResult, error)
}

// Handler - обработчики страницы и API.
type Handler struct {
	query  Querier
	ingest Ingester
	logger *slog.Logger
}

// NewHandler создаёт обработчик. ingest может быть nil - тогда
// POST /api/v1/ingest не регистрируется.
func NewHandler(query Querier, ingest Ingester, logger *slog.Logger) *Handler {
	return &Handler{
		query:  query,
		ingest: ingest,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// CanIngest - доступен ли ручной запуск ингеста.
func (h *Handler) CanIngest() bool {
	return h.ingest != nil
}

// filteredFilesResponse - ответ /submit.
type filteredFilesResponse struct {
	FilteredFiles []service.FileView `json:"filtered_files"`
}

// Index обрабатывает GET / - страница с формой поиска.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := pages.QueryFormData{Action: "/submit", Version: config.Version}
	if err := pages.QueryForm(data).Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга формы поиска", slog.String("error", err.Error()))
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
	}
}

// Submit обрабатывает GET|POST /submit.
// Поля формы принимаются из query string или urlencoded тела.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.ValidationError(w, "Некорректные данные формы")
		return
	}

	in := service.FilterInput{
		FileName:     r.Form.Get("file_name"),
		ContentType:  r.Form.Get("content_type"),
		UploadedFrom: r.Form.Get("upload_timestamp_from"),
		UploadedTo:   r.Form.Get("upload_timestamp_to"),
	}

	views, err := h.query.Query(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка поиска", slog.String("error", err.Error()))
		apierrors.NothingToShow(w)
		return
	}

	writeJSON(w, http.StatusOK, filteredFilesResponse{FilteredFiles: views})
}

// TriggerIngest обрабатывает POST /api/v1/ingest - синхронный запуск ингеста.
// Отключение клиента не прерывает запуск.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	result, err := h.ingest.RunOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrIngestInProgress) {
			apierrors.Conflict(w, err.Error())
			return
		}
		h.logger.Error("Ошибка ручного ингеста", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка ингеста")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
