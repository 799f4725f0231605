// health.go - обработчики health endpoints.
// /health/live - liveness probe (процесс жив)
// /health/ready - readiness probe (PostgreSQL и объектное хранилище доступны)
// /metrics - Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LadnoSam/data-query-lib/internal/config"
)

const serviceName = "data-query"

// ReadinessChecker - интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler - обработчик health endpoints.
type HealthHandler struct {
	pgChecker   ReadinessChecker
	s3Checker   ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// nil-checker считается недоступной зависимостью.
func NewHealthHandler(pgChecker, s3Checker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:   pgChecker,
		s3Checker:   s3Checker,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL  healthCheckResult `json:"postgresql"`
		ObjectStore healthCheckResult `json:"object_store"`
	} `json:"checks"`
}

// HealthLive - liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady - readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	resp.Checks.PostgreSQL = check(h.pgChecker)
	resp.Checks.ObjectStore = check(h.s3Checker)
	resp.Status = overallStatus(resp.Checks.PostgreSQL.Status, resp.Checks.ObjectStore.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics - Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus: fail, если хотя бы одна зависимость fail;
// degraded, если хотя бы одна degraded; иначе ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
