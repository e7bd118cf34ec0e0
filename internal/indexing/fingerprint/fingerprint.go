// Package fingerprint computes the per-frame perceptual hash and sharpness score.
package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
	"golang.org/x/sync/errgroup"
)

// HashBits is the width of a perceptual hash.
const HashBits = 64

var ErrInvalidHash = errors.New("invalid perceptual hash")

// Fingerprint is the computed pair for one frame.
type Fingerprint struct {
	Hash      string
	Sharpness float64
}

// Decode decodes JPEG or PNG frame bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Hash returns the DCT perceptual hash of img as 16 lowercase hex digits.
func Hash(img image.Image) (string, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perception hash: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// Compute decodes data and computes hash and sharpness concurrently. It
// returns ctx.Err() without decoding when ctx is already done.
func Compute(ctx context.Context, data []byte) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return Fingerprint{}, err
	}
	img, err := Decode(data)
	if err != nil {
		return Fingerprint{}, err
	}

	var (
		fp Fingerprint
		g  errgroup.Group
	)
	g.Go(func() error {
		h, err := Hash(img)
		if err != nil {
			return err
		}
		fp.Hash = h
		return nil
	})
	g.Go(func() error {
		fp.Sharpness = Sharpness(img)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

// ParseHash parses a hash produced by Hash.
func ParseHash(s string) (uint64, error) {
	if len(s) != HashBits/4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return v, nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b string) (int, error) {
	x, err := ParseHash(a)
	if err != nil {
		return 0, err
	}
	y, err := ParseHash(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(x ^ y), nil
}

// Vector expands a hash into HashBits components of 0 or 1, most significant
// bit first. Euclidean distance between two vectors is sqrt(Hamming distance).
func Vector(s string) ([]float32, error) {
	v, err := ParseHash(s)
	if err != nil {
		return nil, err
	}
	out := make([]float32, HashBits)
	for i := range out {
		if v&(1<<(HashBits-1-i)) != 0 {
			out[i] = 1
		}
	}
	return out, nil
}
