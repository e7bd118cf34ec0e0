package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/fingerprint"
)

// FingerprintRepo implements storage.FingerprintRepository using PostgreSQL
// with a pgvector bit column for near-duplicate lookups.
type FingerprintRepo struct {
	db *DB
}

// NewFingerprintRepo creates a new PostgreSQL fingerprint repository.
func NewFingerprintRepo(db *DB) *FingerprintRepo {
	return &FingerprintRepo{db: db}
}

const upsertFingerprint = `
	INSERT INTO frame_fingerprints
		(manifest, frame_index, name, frame_no, timestamp_ms, hash, sharpness, hash_bits, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (manifest, frame_index) DO UPDATE SET
		name = EXCLUDED.name,
		frame_no = EXCLUDED.frame_no,
		timestamp_ms = EXCLUDED.timestamp_ms,
		hash = EXCLUDED.hash,
		sharpness = EXCLUDED.sharpness,
		hash_bits = EXCLUDED.hash_bits,
		updated_at = NOW()
`

// SaveBatch upserts fingerprints in one transaction. Records without a valid
// hash (the failure sentinel) are skipped.
func (r *FingerprintRepo) SaveBatch(ctx context.Context, records []domain.FingerprintRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertFingerprint)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		bits, err := fingerprint.Vector(rec.Hash)
		if err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Manifest,
			rec.Index,
			rec.Name,
			rec.FrameNo,
			rec.Timestamp,
			rec.Hash,
			rec.Sharpness,
			pgvector.NewVector(bits),
		); err != nil {
			return fmt.Errorf("failed to save fingerprint %d: %w", rec.Index, err)
		}
	}

	return tx.Commit()
}

// FindNearDuplicates orders frames by Euclidean distance between hash bit
// vectors, which is the square root of their Hamming distance.
func (r *FingerprintRepo) FindNearDuplicates(
	ctx context.Context,
	manifest string,
	hash string,
	limit int,
) ([]domain.FingerprintRecord, error) {
	bits, err := fingerprint.Vector(hash)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT manifest, frame_index, name, frame_no, timestamp_ms, hash, sharpness,
			hash_bits <-> $1 AS distance
		FROM frame_fingerprints
		WHERE manifest = $2
		ORDER BY hash_bits <-> $1, frame_index
		LIMIT $3
	`

	var out []domain.FingerprintRecord
	if err := r.db.SelectContext(ctx, &out, query, pgvector.NewVector(bits), manifest, limit); err != nil {
		return nil, fmt.Errorf("failed to search near duplicates: %w", err)
	}
	return out, nil
}

// Count returns the number of indexed frames of a manifest.
func (r *FingerprintRepo) Count(ctx context.Context, manifest string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM frame_fingerprints WHERE manifest = $1`, manifest)
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return n, nil
}

// DeleteManifest removes every fingerprint of a manifest.
func (r *FingerprintRepo) DeleteManifest(ctx context.Context, manifest string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM frame_fingerprints WHERE manifest = $1`, manifest)
	if err != nil {
		return fmt.Errorf("failed to delete fingerprints: %w", err)
	}
	return nil
}
