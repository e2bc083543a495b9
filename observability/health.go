package observability

import "net/http"

// HealthStatus is the state of a service or one of its upstreams.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is the probe result of one upstream, typically an LLM provider.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ProbeResult builds a Health from a reachability check.
func ProbeResult(name string, reachable bool) Health {
	if reachable {
		return Health{Name: name, Status: HealthStatusUp}
	}
	return Health{Name: name, Status: HealthStatusDown, Message: "unreachable"}
}

// ServiceHealth is the body of the relay's health endpoint.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth returns a ServiceHealth that is up until a component says
// otherwise.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// AddComponent records ch. Down wins over degraded, degraded over up.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	switch {
	case ch.Status == HealthStatusDown:
		sh.Status = HealthStatusDown
	case ch.Status == HealthStatusDegraded && sh.Status == HealthStatusUp:
		sh.Status = HealthStatusDegraded
	}
}

// HTTPStatus maps the overall status to a response code. Degraded services
// still answer 200.
func (sh *ServiceHealth) HTTPStatus() int {
	if sh.Status == HealthStatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
