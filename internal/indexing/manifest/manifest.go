// Package manifest loads, merges and persists the ordered frame list that
// records per-frame fingerprint progress.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/infra/storage"
)

// FileName is the manifest object name under a frame prefix.
const FileName = "frameHash.json"

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrIndexOutOfRange = errors.New("result index out of range")
)

// Manifest is an ordered frame list. A frame's index is its position.
type Manifest struct {
	Bucket string
	Key    string
	Frames []domain.Frame
}

// DefaultKey returns the manifest key for a frame prefix.
func DefaultKey(prefix string) string {
	return path.Join(prefix, FileName)
}

// Decode parses the persisted JSON array form.
func Decode(data []byte) ([]domain.Frame, error) {
	var frames []domain.Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	for i, f := range frames {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: frame %d has no name", ErrInvalidManifest, i)
		}
	}
	return frames, nil
}

// Load reads and parses the manifest at bucket/key.
func Load(ctx context.Context, store storage.ObjectStore, bucket, key string) (*Manifest, error) {
	data, err := store.Get(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", key, err)
	}
	frames, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", key, err)
	}
	return &Manifest{Bucket: bucket, Key: key, Frames: frames}, nil
}

// Save persists the manifest as a JSON array.
func (m *Manifest) Save(ctx context.Context, store storage.ObjectStore) error {
	frames := m.Frames
	if frames == nil {
		frames = []domain.Frame{}
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := store.Put(ctx, m.Bucket, m.Key, data); err != nil {
		return fmt.Errorf("save manifest %s: %w", m.Key, err)
	}
	return nil
}

// Merge applies a worker result to the frame at r.Index.
func (m *Manifest) Merge(r domain.Result) error {
	if r.Index < 0 || r.Index >= len(m.Frames) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, r.Index, len(m.Frames))
	}
	sharpness := r.Sharpness
	m.Frames[r.Index].Hash = r.Hash
	m.Frames[r.Index].Sharpness = &sharpness
	return nil
}

// Unresolved returns the ascending indices of frames without a hash.
func (m *Manifest) Unresolved() []int {
	var out []int
	for i, f := range m.Frames {
		if !f.Processed() {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns processed (including failed), failed and total frame counts.
func (m *Manifest) Counts() (processed, failed, total int) {
	for _, f := range m.Frames {
		if f.Processed() {
			processed++
		}
		if f.Failed() {
			failed++
		}
	}
	return processed, failed, len(m.Frames)
}

// Complete reports whether every frame has a hash.
func (m *Manifest) Complete() bool {
	processed, _, total := m.Counts()
	return processed == total
}

// Progress returns the rounded percentage of processed frames. An empty
// manifest is complete.
func (m *Manifest) Progress() int {
	processed, _, total := m.Counts()
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

// Records returns index records for every successfully hashed frame.
func (m *Manifest) Records(name string) []domain.FingerprintRecord {
	var out []domain.FingerprintRecord
	for i, f := range m.Frames {
		if !f.Processed() || f.Failed() {
			continue
		}
		rec := domain.FingerprintRecord{
			Manifest:  name,
			Index:     i,
			Name:      f.Name,
			FrameNo:   f.FrameNo,
			Timestamp: f.Timestamp,
			Hash:      f.Hash,
		}
		if f.Sharpness != nil {
			rec.Sharpness = *f.Sharpness
		}
		out = append(out, rec)
	}
	return out
}
