// Package health provides pass health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a manifest.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ManifestHealth contains health metrics for a manifest being fingerprinted.
type ManifestHealth struct {
	Manifest  string       `json:"manifest"`
	Status    SystemStatus `json:"status"`
	Progress  int          `json:"progress"`
	Passes    int          `json:"passes"`
	Failed    int          `json:"failed_frames"`
	Completed bool         `json:"completed"`
	LastPass  time.Time    `json:"last_pass,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus              `json:"system_status"`
	Manifests    map[string]ManifestHealth `json:"manifests"`
}
