package service

type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

type ComponentState string

const (
	ComponentConnected    ComponentState = "connected"
	ComponentDisconnected ComponentState = "disconnected"
)

type HealthStatus struct {
	Status               HealthState    `json:"status"`
	PollerStatus         string         `json:"poller_status"`
	DatabaseStatus       ComponentState `json:"database_status"`
	RedisStatus          ComponentState `json:"redis_status"`
	CircuitBreakerStatus string         `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  BreakerState   `json:"circuit_breaker_state,omitempty"`
}
