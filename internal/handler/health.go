package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/coreflowhq/wabroker/internal/service"
)

type healthResponse struct {
	Status               service.HealthState    `json:"status"`
	PollerStatus         string                 `json:"poller_status,omitempty"`
	DatabaseStatus       service.ComponentState `json:"database_status,omitempty"`
	RedisStatus          service.ComponentState `json:"redis_status,omitempty"`
	CircuitBreakerStatus string                 `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  service.BreakerState   `json:"circuit_breaker_state,omitempty"`
	Timestamp            time.Time              `json:"timestamp"`
}

// HealthCheck reports aggregate component health. Unhealthy yields 503;
// degraded stays 200 so the process remains reachable for monitoring.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth()

	response := healthResponse{
		Status:               health.Status,
		PollerStatus:         health.PollerStatus,
		DatabaseStatus:       health.DatabaseStatus,
		RedisStatus:          health.RedisStatus,
		CircuitBreakerStatus: health.CircuitBreakerStatus,
		CircuitBreakerState:  health.CircuitBreakerState,
		Timestamp:            time.Now(),
	}

	if health.Status == service.HealthUnhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}
