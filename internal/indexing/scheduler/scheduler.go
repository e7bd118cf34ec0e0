// Package scheduler runs deadline-bounded fingerprint passes over a manifest.
//
// A pass loads (or builds) the manifest, splits the unresolved frames across
// workers by interleaved partition, merges the streamed results and persists
// the manifest once. Frames left unresolved when the deadline hits are picked
// up by the next pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/indexing/metrics"
	"github.com/vietddude/framehash/internal/indexing/partition"
	"github.com/vietddude/framehash/internal/indexing/worker"
	"github.com/vietddude/framehash/internal/infra/retry"
	"github.com/vietddude/framehash/internal/infra/storage"
)

var (
	// ErrPassLimit is returned when a manifest is still unresolved after the
	// maximum number of passes.
	ErrPassLimit = errors.New("pass limit reached")

	// ErrPassInProgress is returned when another process holds the pass lease.
	ErrPassInProgress = errors.New("pass already in progress")
)

// persistTimeout bounds the final writes of a pass, which run even after the
// pass context is cancelled.
const persistTimeout = 30 * time.Second

// Config holds configuration for the scheduler.
type Config struct {
	Workers             int           // Parallel workers per pass (default: NumCPU)
	MaxPasses           int           // Passes allowed per manifest (default: 10)
	DeadlineBuffer      time.Duration // Reserved at the end of the budget for persisting (default: 60s)
	SequentialThreshold int           // Unresolved frames at or below this use one worker (default: 100)
	Budget              time.Duration // Pass budget when the caller has no deadline (default: 15m)
	LeaseTTL            time.Duration // Pass lease lifetime (default: Budget + 1m)
	Buffer              int           // Result channel capacity per worker (default: 64)
	Worker              worker.Config
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Workers:             runtime.NumCPU(),
		MaxPasses:           10,
		DeadlineBuffer:      60 * time.Second,
		SequentialThreshold: 100,
		Budget:              15 * time.Minute,
		LeaseTTL:            16 * time.Minute,
		Buffer:              64,
		Worker:              worker.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = def.MaxPasses
	}
	switch {
	case c.DeadlineBuffer == 0:
		c.DeadlineBuffer = def.DeadlineBuffer
	case c.DeadlineBuffer < 0:
		c.DeadlineBuffer = 0
	}
	// A negative threshold always runs in parallel.
	if c.SequentialThreshold == 0 {
		c.SequentialThreshold = def.SequentialThreshold
	}
	if c.Budget <= 0 {
		c.Budget = def.Budget
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = c.Budget + time.Minute
	}
	if c.Buffer <= 0 {
		c.Buffer = def.Buffer
	}
	return c
}

// Request identifies the manifest a pass works on.
type Request struct {
	Bucket       string
	Prefix       string
	// ManifestName is relative to Prefix (default: frameHash.json).
	ManifestName string
	// Capture is used to build the manifest when it does not exist yet.
	Capture manifest.Capture
	// Deadline is the end of the caller's budget. Zero means now + Budget.
	Deadline time.Time
}

func (r Request) name() string {
	if r.ManifestName == "" {
		return manifest.FileName
	}
	return r.ManifestName
}

// Key returns the manifest object key.
func (r Request) Key() string {
	return path.Join(r.Prefix, r.name())
}

// ID returns the ledger identity of the manifest.
func (r Request) ID() string {
	return r.Bucket + "/" + r.Key()
}

// Scheduler runs passes. It is safe for concurrent use on different manifests.
type Scheduler struct {
	mu       sync.RWMutex
	cfg      Config
	store    storage.ObjectStore
	ledger   storage.PassLedger
	sink     storage.FingerprintRepository
	strategy *retry.Strategy
	log      *slog.Logger
	now      func() time.Time
}

// New creates a scheduler. sink may be nil when fingerprints are not indexed.
func New(
	cfg Config,
	store storage.ObjectStore,
	ledger storage.PassLedger,
	sink storage.FingerprintRepository,
	strategy *retry.Strategy,
) *Scheduler {
	if strategy == nil {
		strategy = retry.NewStrategy(retry.DefaultOptions())
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		store:    store,
		ledger:   ledger,
		sink:     sink,
		strategy: strategy,
		log:      slog.Default().With("component", "scheduler"),
		now:      time.Now,
	}
}

// SetConfig replaces the configuration. Passes already running keep the old one.
func (s *Scheduler) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
}

// Config returns the active configuration.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Run repeats passes until the manifest is complete, the pass limit is
// reached or ctx is done. With a caller deadline it also stops once the pass
// deadline, Deadline minus DeadlineBuffer, has passed.
func (s *Scheduler) Run(ctx context.Context, req Request) (*domain.PassReport, error) {
	for {
		report, err := s.RunPass(ctx, req)
		if err != nil {
			return report, err
		}
		if report.Completed {
			return report, nil
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.outOfTime(req) {
			s.log.Info("No time left for another pass",
				"manifest", req.ID(),
				"progress", report.Progress,
			)
			return report, nil
		}
		s.log.Info("Manifest incomplete, starting next pass",
			"manifest", req.ID(),
			"progress", report.Progress,
			"passes", report.Passes,
		)
	}
}

// passDeadline is the time after which a pass started at started begins no
// frame work.
func (r Request) passDeadline(cfg Config, started time.Time) time.Time {
	end := r.Deadline
	if end.IsZero() {
		end = started.Add(cfg.Budget)
	}
	return end.Add(-cfg.DeadlineBuffer)
}

// outOfTime reports whether a new pass would have no working time left.
func (s *Scheduler) outOfTime(req Request) bool {
	cfg := s.Config()
	now := s.now()
	return !now.Before(req.passDeadline(cfg, now))
}

// RunPass runs one pass over the manifest.
func (s *Scheduler) RunPass(ctx context.Context, req Request) (*domain.PassReport, error) {
	cfg := s.Config()
	id := req.ID()
	runID := uuid.NewString()
	log := s.log.With("manifest", id, "run", runID)
	started := s.now()

	ok, err := s.ledger.AcquireLease(ctx, id, runID, cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire pass lease: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrPassInProgress)
	}
	defer func() {
		if err := s.ledger.ReleaseLease(context.WithoutCancel(ctx), id, runID); err != nil {
			log.Warn("Failed to release pass lease", "error", err)
		}
	}()

	m, err := manifest.LoadOrBuild(ctx, s.store, req.Bucket, req.Prefix, req.Key(), req.Capture)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	passes, err := s.ledger.Passes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read pass count: %w", err)
	}

	unresolved := m.Unresolved()
	if len(unresolved) == 0 {
		log.Info("Manifest already complete", "frames", len(m.Frames))
		return s.finish(ctx, log, m, runID, id, passes, 0, started)
	}
	if passes >= cfg.MaxPasses {
		log.Warn("Pass limit reached", "passes", passes, "unresolved", len(unresolved))
		report := s.report(m, runID, id, passes, 0, started)
		return report, fmt.Errorf("%s after %d passes: %w", id, passes, ErrPassLimit)
	}

	deadline := req.passDeadline(cfg, started)

	workers := cfg.Workers
	if len(unresolved) <= cfg.SequentialThreshold {
		workers = 1
	}

	log.Info("Starting pass",
		"frames", len(m.Frames),
		"unresolved", len(unresolved),
		"workers", workers,
		"deadline", deadline.Format(time.RFC3339),
	)

	fatal := s.fanOut(ctx, log, cfg, m, req, workers, deadline)
	if fatal != nil && fatal.all {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return nil, fatal.first
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := m.Save(persistCtx, s.store); err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	passes, err = s.ledger.IncrementPasses(persistCtx, id)
	if err != nil {
		return nil, fmt.Errorf("increment pass count: %w", err)
	}

	s.index(persistCtx, log, m, id)
	return s.finish(persistCtx, log, m, runID, id, passes, workers, started)
}

type fanOutError struct {
	first error
	all   bool
}

// fanOut runs one worker per partition and merges their streams into m.
func (s *Scheduler) fanOut(
	ctx context.Context,
	log *slog.Logger,
	cfg Config,
	m *manifest.Manifest,
	req Request,
	workers int,
	deadline time.Time,
) *fanOutError {
	parts, err := partition.ForWorkers(workers)
	if err != nil {
		return &fanOutError{first: err, all: true}
	}

	agg := manifest.NewAggregator(m)
	streams := make([]<-chan domain.Result, len(parts))

	var (
		mu     sync.Mutex
		failed int
		first  error
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		ch := make(chan domain.Result, cfg.Buffer)
		streams[i] = ch
		inv := domain.Invocation{
			StorageLocation: req.Bucket,
			Prefix:          req.Prefix,
			ManifestKey:     req.name(),
			StartIndex:      p.StartIndex,
			Step:            p.Step,
			Deadline:        deadline,
		}
		w := worker.NewWorker(cfg.Worker, s.store)
		g.Go(func() error {
			if _, err := w.Run(gctx, inv, ch); err != nil {
				log.Error("Worker failed", "partition", p.String(), "error", err)
				mu.Lock()
				failed++
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
			return nil
		})
	}

	agg.Consume(streams...)
	_ = g.Wait()

	if agg.Rejected() > 0 {
		log.Warn("Dropped out-of-range results", "count", agg.Rejected())
	}
	if first == nil {
		return nil
	}
	return &fanOutError{first: first, all: failed == len(parts)}
}

// index writes hashed frames to the fingerprint repository. Failures are
// logged; the manifest stays the source of truth.
func (s *Scheduler) index(ctx context.Context, log *slog.Logger, m *manifest.Manifest, id string) {
	if s.sink == nil {
		return
	}
	records := m.Records(id)
	err := retry.Do(ctx, s.strategy, func(ctx context.Context) error {
		return s.sink.SaveBatch(ctx, records)
	})
	if err != nil {
		log.Warn("Failed to index fingerprints", "records", len(records), "error", err)
	}
}

func (s *Scheduler) report(
	m *manifest.Manifest,
	runID, id string,
	passes, workers int,
	started time.Time,
) *domain.PassReport {
	processed, failed, total := m.Counts()
	finished := s.now()
	return &domain.PassReport{
		RunID:      runID,
		Manifest:   id,
		Completed:  processed == total,
		Progress:   m.Progress(),
		Total:      total,
		Processed:  processed,
		Failed:     failed,
		Passes:     passes,
		Workers:    workers,
		DurationMs: finished.Sub(started).Milliseconds(),
		FinishedAt: finished,
	}
}

func (s *Scheduler) finish(
	ctx context.Context,
	log *slog.Logger,
	m *manifest.Manifest,
	runID, id string,
	passes, workers int,
	started time.Time,
) (*domain.PassReport, error) {
	report := s.report(m, runID, id, passes, workers, started)

	result := "partial"
	if report.Completed {
		result = "completed"
	}
	metrics.PassesTotal.WithLabelValues(result).Inc()
	metrics.PassDuration.Observe(float64(report.DurationMs) / 1000)
	metrics.ManifestProgress.WithLabelValues(id).Set(float64(report.Progress))

	err := retry.Do(ctx, s.strategy, func(ctx context.Context) error {
		return s.ledger.SaveReport(ctx, *report)
	})
	if err != nil {
		log.Warn("Failed to save pass report", "error", err)
	}

	log.Info("Pass finished",
		"completed", report.Completed,
		"progress", report.Progress,
		"processed", report.Processed,
		"failed", report.Failed,
		"passes", report.Passes,
		"duration", time.Duration(report.DurationMs)*time.Millisecond,
	)
	return report, nil
}
