package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

const readinessTimeout = 3 * time.Second

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	system services.SystemService
	now    func() time.Time
}

// NewHealthHandlers builds probe handlers. A nil system service keeps /readyz
// answering ok, which suits local runs without backing services.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system, now: time.Now}
}

// Healthz reports that the process is serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Readyz probes backing services and answers 503 when any is in error.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": string(domain.HealthStatusOK)})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("health_unavailable", "health report unavailable", http.StatusServiceUnavailable))
		return
	}
	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, buildHealthPayload(report))
}

type healthCheckPayload struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type healthPayload struct {
	Status      string               `json:"status"`
	Version     string               `json:"version,omitempty"`
	CommitSHA   string               `json:"commitSha,omitempty"`
	Environment string               `json:"environment,omitempty"`
	Uptime      string               `json:"uptime,omitempty"`
	GeneratedAt string               `json:"generatedAt,omitempty"`
	Checks      []healthCheckPayload `json:"checks"`
}

func buildHealthCheckPayload(c domain.HealthCheck) healthCheckPayload {
	return healthCheckPayload{
		Name:      c.Name,
		Status:    string(c.Status),
		Detail:    c.Detail,
		LatencyMS: c.Latency.Milliseconds(),
		CheckedAt: formatTime(c.CheckedAt),
	}
}

func buildHealthPayload(report domain.HealthReport) healthPayload {
	checks := make([]healthCheckPayload, 0, len(report.Checks))
	for _, c := range report.Checks {
		checks = append(checks, buildHealthCheckPayload(c))
	}
	payload := healthPayload{
		Status:      string(report.Status),
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		GeneratedAt: formatTime(report.GeneratedAt),
		Checks:      checks,
	}
	if report.Uptime > 0 {
		payload.Uptime = report.Uptime.Round(time.Second).String()
	}
	return payload
}
