package manifest

import (
	"log/slog"
	"sync"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/metrics"
)

// Aggregator merges worker result streams into a manifest. It is the only
// writer of the manifest while a pass runs.
type Aggregator struct {
	manifest *Manifest
	log      *slog.Logger

	merged   int
	failed   int
	rejected int
}

// NewAggregator creates an aggregator for m.
func NewAggregator(m *Manifest) *Aggregator {
	return &Aggregator{
		manifest: m,
		log:      slog.Default().With("component", "aggregator", "manifest", m.Key),
	}
}

// Consume drains every stream until all are closed. Each worker closes its
// own stream when it stops, so Consume returns once all workers are done.
func (a *Aggregator) Consume(streams ...<-chan domain.Result) {
	merged := make(chan domain.Result)

	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s <-chan domain.Result) {
			defer wg.Done()
			for r := range s {
				merged <- r
			}
		}(s)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for r := range merged {
		a.apply(r)
	}
}

func (a *Aggregator) apply(r domain.Result) {
	if err := a.manifest.Merge(r); err != nil {
		a.rejected++
		a.log.Warn("Dropping result", "index", r.Index, "error", err)
		return
	}
	a.merged++
	if r.Failed() {
		a.failed++
		metrics.FramesProcessed.WithLabelValues("failed").Inc()
	} else {
		metrics.FramesProcessed.WithLabelValues("hashed").Inc()
	}
}

// Merged returns how many results were applied, including failures.
func (a *Aggregator) Merged() int {
	return a.merged
}

// Failed returns how many applied results were failure sentinels.
func (a *Aggregator) Failed() int {
	return a.failed
}

// Rejected returns how many results were dropped as out of range.
func (a *Aggregator) Rejected() int {
	return a.rejected
}
