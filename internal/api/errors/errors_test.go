package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(http.ResponseWriter)
		status  int
		code    Code
		message string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "плохая дата") }, http.StatusBadRequest, CodeValidationError, "плохая дата"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "ингест уже выполняется") }, http.StatusConflict, CodeConflict, "ингест уже выполняется"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "Ошибка ингеста") }, http.StatusInternalServerError, CodeInternalError, "Ошибка ингеста"},
		{"nothing to show", NothingToShow, http.StatusInternalServerError, CodeInternalError, MsgNothingToShow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.status {
				t.Errorf("status = %d, ожидался %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body Body
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("тело не JSON: %v", err)
			}
			if body.Error.Code != tt.code || body.Error.Message != tt.message {
				t.Errorf("error = %+v, ожидался {%s %s}", body.Error, tt.code, tt.message)
			}
		})
	}
}
