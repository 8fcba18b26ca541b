package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is anything that can report whether it is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	store   HealthChecker
	timeout time.Duration
}

// NewHealthHandler takes a nil redis when the count cache is disabled.
func NewHealthHandler(db, redis, store HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, store: store, timeout: 2 * time.Second}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.check(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Ready reports whether the dependencies needed to serve traffic are up.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.check(r.Context())
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "alive"})
}

func (h *HealthHandler) check(ctx context.Context) (HealthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Services: map[string]string{}}
	ok := true
	for name, c := range map[string]HealthChecker{"database": h.db, "redis": h.redis, "storage": h.store} {
		if c == nil {
			continue
		}
		if err := c.Health(ctx); err != nil {
			resp.Services[name] = "unhealthy"
			ok = false
			continue
		}
		resp.Services[name] = "healthy"
	}
	if !ok {
		resp.Status = "unhealthy"
	}
	return resp, ok
}
