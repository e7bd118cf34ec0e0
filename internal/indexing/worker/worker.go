// Package worker fingerprints the frames of one manifest partition under a
// wall-clock deadline.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/fingerprint"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/indexing/metrics"
	"github.com/vietddude/framehash/internal/indexing/partition"
	"github.com/vietddude/framehash/internal/infra/storage"
)

// Config holds configuration for a fingerprint worker.
type Config struct {
	SafetyMargin time.Duration // Stop once the deadline is closer than this (default: 500ms)
	FetchTimeout time.Duration // Max time per frame fetch (default: 10s)
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() Config {
	return Config{
		SafetyMargin: 500 * time.Millisecond,
		FetchTimeout: 10 * time.Second,
	}
}

// Summary counts what one worker run did.
type Summary struct {
	Emitted  int
	Failed   int
	Skipped  int
	Deadline bool
}

// Worker fingerprints frames of one partition and streams results.
type Worker struct {
	cfg   Config
	store storage.ObjectStore
	now   func() time.Time
}

// NewWorker creates a new fingerprint worker.
func NewWorker(cfg Config, store storage.ObjectStore) *Worker {
	def := DefaultConfig()
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = def.SafetyMargin
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Worker{cfg: cfg, store: store, now: time.Now}
}

// Run processes the partition {inv.StartIndex, inv.Step} of the manifest in
// ascending order, sending one result per frame on out. Frames that already
// carry a hash are skipped. A frame is only started while the deadline is
// at least SafetyMargin away. Run closes out before returning.
//
// A missing or unreadable manifest, or an invalid invocation, yields a
// *domain.FatalError and no results. Reaching the deadline or a cancelled
// context ends the run early without error.
func (w *Worker) Run(ctx context.Context, inv domain.Invocation, out chan<- domain.Result) (Summary, error) {
	defer close(out)

	var sum Summary
	log := slog.Default().With("component", "worker", "partition", fmt.Sprintf("%d/%d", inv.StartIndex, inv.Step))

	if err := inv.Validate(); err != nil {
		return sum, &domain.FatalError{Invocation: inv, Err: err}
	}

	m, err := manifest.Load(ctx, w.store, inv.StorageLocation, path.Join(inv.Prefix, inv.ManifestKey))
	if err != nil {
		return sum, &domain.FatalError{Invocation: inv, Err: err}
	}

	p := partition.Partition{StartIndex: inv.StartIndex, Step: inv.Step}
	for _, idx := range p.Indices(len(m.Frames)) {
		if ctx.Err() != nil {
			log.Info("Worker cancelled", "index", idx)
			break
		}

		frame := m.Frames[idx]
		if frame.Processed() {
			sum.Skipped++
			continue
		}

		// No frame starts inside the safety margin.
		if inv.Deadline.Sub(w.now()) < w.cfg.SafetyMargin {
			log.Info("Deadline reached, stopping", "index", idx)
			sum.Deadline = true
			break
		}

		r := w.process(ctx, log, inv, idx, frame)
		out <- r
		sum.Emitted++
		if r.Failed() {
			sum.Failed++
		}
	}

	log.Debug("Worker done",
		"emitted", sum.Emitted,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"deadline", sum.Deadline,
	)
	return sum, nil
}

// process fetches and fingerprints one frame. Any failure yields the sentinel.
func (w *Worker) process(
	ctx context.Context,
	log *slog.Logger,
	inv domain.Invocation,
	idx int,
	frame domain.Frame,
) domain.Result {
	start := w.now()
	defer func() {
		metrics.FrameLatency.Observe(w.now().Sub(start).Seconds())
	}()

	key := path.Join(inv.Prefix, frame.Name)

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	data, err := w.store.Get(fetchCtx, inv.StorageLocation, key)
	cancel()
	if err != nil {
		metrics.FetchFailures.Inc()
		log.Warn("Failed to fetch frame", "index", idx, "key", key, "error", err)
		return domain.FailedResult(idx)
	}

	fp, err := fingerprint.Compute(ctx, data)
	if err != nil {
		log.Warn("Failed to fingerprint frame", "index", idx, "key", key, "error", err)
		return domain.FailedResult(idx)
	}

	return domain.Result{Index: idx, Hash: fp.Hash, Sharpness: fp.Sharpness}
}
