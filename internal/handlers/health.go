package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/poshakghar/api/internal/platform/httpx"
)

const readinessTimeout = 5 * time.Second

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ready func(ctx context.Context) error
}

// NewHealthHandler constructs the handler. ready may be nil, in which case
// readiness always succeeds.
func NewHealthHandler(ready func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "dependencies unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
