package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/framehash/internal/core/domain"
)

var (
	// ErrObjectNotFound is returned when a key doesn't exist in the object store
	ErrObjectNotFound = errors.New("object not found")

	// ErrReportNotFound is returned when no pass has been recorded for a manifest
	ErrReportNotFound = errors.New("pass report not found")
)

// ObjectStore reads and writes frame images and manifests
type ObjectStore interface {
	// Get returns the object bytes, or ErrObjectNotFound
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put writes the object, replacing any existing one
	Put(ctx context.Context, bucket, key string, data []byte) error

	// List returns every key under prefix, sorted
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// PassLedger tracks passes per manifest across processes
type PassLedger interface {
	// AcquireLease takes the pass lease for a manifest. It returns false when
	// another owner holds it.
	AcquireLease(ctx context.Context, manifest, owner string, ttl time.Duration) (bool, error)

	// ReleaseLease drops the lease if owner still holds it
	ReleaseLease(ctx context.Context, manifest, owner string) error

	// IncrementPasses records one more pass and returns the new count
	IncrementPasses(ctx context.Context, manifest string) (int, error)

	// Passes returns the number of passes recorded
	Passes(ctx context.Context, manifest string) (int, error)

	// SaveReport stores the latest pass report
	SaveReport(ctx context.Context, report domain.PassReport) error

	// LastReport returns the latest pass report, or ErrReportNotFound
	LastReport(ctx context.Context, manifest string) (*domain.PassReport, error)

	// Reset clears the pass count, lease and report
	Reset(ctx context.Context, manifest string) error
}

// FingerprintRepository indexes computed fingerprints for similarity lookups
type FingerprintRepository interface {
	// SaveBatch upserts fingerprints keyed by manifest and index
	SaveBatch(ctx context.Context, records []domain.FingerprintRecord) error

	// FindNearDuplicates returns frames of the manifest closest to hash, nearest first
	FindNearDuplicates(
		ctx context.Context,
		manifest string,
		hash string,
		limit int,
	) ([]domain.FingerprintRecord, error)

	// Count returns the number of indexed frames of a manifest
	Count(ctx context.Context, manifest string) (int, error)

	// DeleteManifest removes every fingerprint of a manifest
	DeleteManifest(ctx context.Context, manifest string) error
}
