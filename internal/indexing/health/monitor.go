package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/framehash/internal/core/domain"
)

// ReportSource returns the latest pass report of a manifest.
type ReportSource interface {
	LastReport(ctx context.Context, manifest string) (*domain.PassReport, error)
}

// Monitor aggregates health status of tracked manifests.
type Monitor struct {
	source     ReportSource
	maxPasses  int
	manifests  map[string]struct{}
	lastCheck  time.Time
	lastReport map[string]ManifestHealth
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(source ReportSource, maxPasses int) *Monitor {
	return &Monitor{
		source:     source,
		maxPasses:  maxPasses,
		manifests:  make(map[string]struct{}),
		lastReport: make(map[string]ManifestHealth),
	}
}

// Track adds a manifest to the health report.
func (m *Monitor) Track(manifest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifest] = struct{}{}
	m.lastCheck = time.Time{}
}

// CheckHealth performs a health check for all tracked manifests.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ManifestHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering the ledger
	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ManifestHealth)

	for id := range m.manifests {
		health := ManifestHealth{
			Manifest: id,
			Status:   StatusHealthy,
		}

		last, err := m.source.LastReport(ctx, id)
		if err != nil {
			// No pass recorded yet
			report[id] = health
			continue
		}

		health.Progress = last.Progress
		health.Passes = last.Passes
		health.Failed = last.Failed
		health.Completed = last.Completed
		health.LastPass = last.FinishedAt

		// Evaluate Status
		exhausted := !last.Completed && m.maxPasses > 0 && last.Passes >= m.maxPasses
		mostlyFailed := last.Total > 0 && last.Failed*2 > last.Total
		if exhausted || mostlyFailed {
			health.Status = StatusCritical
		} else if last.Failed > 0 || (!last.Completed && last.Passes > 1) {
			health.Status = StatusDegraded
		}

		report[id] = health
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
