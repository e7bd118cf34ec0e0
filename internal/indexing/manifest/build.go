package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strconv"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/infra/storage"
)

var frameNamePattern = regexp.MustCompile(`frame\.([0-9]+)\.jpg$`)

// Capture describes how frames were extracted from the source video.
type Capture struct {
	FPS  float64
	Mode domain.CaptureMode
}

// Build lists the extracted frames under prefix and persists a fresh manifest
// at key. Frames are ordered by frame number.
func Build(
	ctx context.Context,
	store storage.ObjectStore,
	bucket, prefix, key string,
	capture Capture,
) (*Manifest, error) {
	rate, ok := domain.SuggestCaptureRate(capture.FPS, capture.Mode)
	if !ok {
		return nil, fmt.Errorf("unsupported capture mode %d at %.3f fps", capture.Mode, capture.FPS)
	}

	keys, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}

	frames := make([]domain.Frame, 0, len(keys))
	for _, k := range keys {
		name := path.Base(k)
		matched := frameNamePattern.FindStringSubmatch(name)
		if matched == nil {
			continue
		}
		idx, err := strconv.Atoi(matched[1])
		if err != nil {
			continue
		}
		frameNo, timestamp := domain.FrameNumAndTimestamp(idx, capture.FPS, rate)
		frames = append(frames, domain.Frame{
			Name:      name,
			FrameNo:   frameNo,
			Timestamp: timestamp,
		})
	}

	slices.SortStableFunc(frames, func(a, b domain.Frame) int {
		return a.FrameNo - b.FrameNo
	})

	m := &Manifest{Bucket: bucket, Key: key, Frames: frames}
	if err := m.Save(ctx, store); err != nil {
		return nil, err
	}

	slog.Info("Built manifest", "key", key, "frames", len(frames))
	return m, nil
}

// LoadOrBuild loads the manifest, building it when missing or unreadable.
func LoadOrBuild(
	ctx context.Context,
	store storage.ObjectStore,
	bucket, prefix, key string,
	capture Capture,
) (*Manifest, error) {
	m, err := Load(ctx, store, bucket, key)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) && !errors.Is(err, ErrInvalidManifest) {
		return nil, err
	}

	slog.Warn("Manifest unavailable, rebuilding", "key", key, "error", err)
	return Build(ctx, store, bucket, prefix, key, capture)
}
