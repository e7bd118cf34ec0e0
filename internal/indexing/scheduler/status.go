package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/infra/storage"
)

// Status returns the current state of a manifest. It reads the manifest
// itself so frames merged after the last recorded pass are counted.
func (s *Scheduler) Status(ctx context.Context, req Request) (*domain.PassReport, error) {
	id := req.ID()

	m, err := manifest.Load(ctx, s.store, req.Bucket, req.Key())
	if err != nil {
		return nil, err
	}
	passes, err := s.ledger.Passes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read pass count: %w", err)
	}

	var runID string
	var workers int
	last, err := s.ledger.LastReport(ctx, id)
	switch {
	case err == nil:
		runID, workers = last.RunID, last.Workers
	case !errors.Is(err, storage.ErrReportNotFound):
		return nil, fmt.Errorf("read pass report: %w", err)
	}

	report := s.report(m, runID, id, passes, workers, s.now())
	if last != nil {
		report.DurationMs = last.DurationMs
		report.FinishedAt = last.FinishedAt
	}
	return report, nil
}

// Reset clears the pass count, lease and indexed fingerprints of a manifest.
// With clearHashes the manifest's frames are marked unprocessed again.
func (s *Scheduler) Reset(ctx context.Context, req Request, clearHashes bool) error {
	id := req.ID()

	if err := s.ledger.Reset(ctx, id); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	if s.sink != nil {
		if err := s.sink.DeleteManifest(ctx, id); err != nil {
			return fmt.Errorf("delete fingerprints: %w", err)
		}
	}
	if !clearHashes {
		return nil
	}

	m, err := manifest.Load(ctx, s.store, req.Bucket, req.Key())
	if err != nil {
		return err
	}
	for i := range m.Frames {
		m.Frames[i].Hash = ""
		m.Frames[i].Sharpness = nil
	}
	if err := m.Save(ctx, s.store); err != nil {
		return err
	}

	s.log.Info("Manifest reset", "manifest", id, "frames", len(m.Frames))
	return nil
}
