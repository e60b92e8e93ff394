// health.go - Health monitoring for the transfer daemon
package main

import (
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth is the probed state of one daemon component
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth represents the overall daemon health
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
}

type healthProbe struct {
	name  string
	check func() error
}

// HealthChecker probes the daemon's components on demand: the RPC endpoint,
// the content store and the ledger file. Probes run in registration order.
type HealthChecker struct {
	mu        sync.Mutex
	probes    []healthProbe
	degraded  map[string]string
	startTime time.Time
	version   string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		degraded:  make(map[string]string),
		startTime: time.Now(),
		version:   version,
	}
}

// RegisterProbe registers a health probe for a component
func (hc *HealthChecker) RegisterProbe(name string, check func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.probes = append(hc.probes, healthProbe{name: name, check: check})
}

// MarkDegraded flags a component as degraded until cleared. A degraded
// component that still passes its probe is reported degraded, not healthy.
func (hc *HealthChecker) MarkDegraded(name, reason string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.degraded[name] = reason
}

// ClearDegraded removes a degraded flag
func (hc *HealthChecker) ClearDegraded(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.degraded, name)
}

// CheckHealth runs every probe and aggregates the results
func (hc *HealthChecker) CheckHealth() *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overall := Healthy
	components := make([]ComponentHealth, 0, len(hc.probes))

	for _, p := range hc.probes {
		start := time.Now()
		err := p.check()
		ch := ComponentHealth{
			Name:      p.name,
			Status:    Healthy,
			Message:   "OK",
			LastCheck: time.Now(),
			Latency:   time.Since(start),
		}
		if err != nil {
			ch.Status = Unhealthy
			ch.Message = err.Error()
		} else if reason, ok := hc.degraded[p.name]; ok {
			ch.Status = Degraded
			ch.Message = reason
		}

		if ch.Status == Unhealthy {
			overall = Unhealthy
		} else if ch.Status == Degraded && overall == Healthy {
			overall = Degraded
		}
		components = append(components, ch)
	}

	return &SystemHealth{
		OverallStatus: overall,
		Timestamp:     time.Now(),
		Components:    components,
		Uptime:        time.Since(hc.startTime),
		Version:       hc.version,
	}
}

// HealthCheckResponse represents the response format for health endpoints
type HealthCheckResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateHealthResponse creates a standardized health check response
func CreateHealthResponse(health *SystemHealth) *HealthCheckResponse {
	status := "success"
	message := "System is healthy"

	if health.OverallStatus == Unhealthy {
		status = "error"
		message = "System is unhealthy"
	} else if health.OverallStatus == Degraded {
		status = "warning"
		message = "System is degraded"
	}

	return &HealthCheckResponse{
		Status:  status,
		Message: message,
		Data:    health,
	}
}
