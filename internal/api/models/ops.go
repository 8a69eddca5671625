package models

import "time"

// HealthStatus is the coarse state reported by the probes.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusDown     HealthStatus = "DOWN"
)

// Health is the body of GET /health and GET /ready.
type Health struct {
	Status  HealthStatus      `json:"status"`
	Time    time.Time         `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
