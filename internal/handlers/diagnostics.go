package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

// DiagnosticsHandlers exposes connectivity diagnostics for operators.
type DiagnosticsHandlers struct {
	system services.SystemService
}

// NewDiagnosticsHandlers constructs diagnostics handlers.
func NewDiagnosticsHandlers(system services.SystemService) *DiagnosticsHandlers {
	return &DiagnosticsHandlers{system: system}
}

// Routes registers the /diagnostics endpoints.
func (h *DiagnosticsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/db", h.database)
}

// database reports whether the document store answers and how fast. A failed
// probe is still a 200 carrying status "error" so the page can show it, unless
// the probe itself could not run.
func (h *DiagnosticsHandlers) database(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("diagnostics_unavailable", "diagnostics unavailable", http.StatusServiceUnavailable))
		return
	}
	check, err := h.system.DatabaseDiagnostic(ctx)
	if err != nil {
		writeInternalError(ctx, w, "diagnostics_failed", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"connected": check.Status != domain.HealthStatusError,
		"check":     buildHealthCheckPayload(check),
	})
}
