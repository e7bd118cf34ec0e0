// Package partition assigns disjoint, interleaved frame indices to workers.
package partition

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkers is returned when the worker count is not positive.
var ErrInvalidWorkers = errors.New("worker count must be positive")

// Partition is the index set {StartIndex + k*Step : k >= 0} within a manifest.
type Partition struct {
	StartIndex int
	Step       int
}

// String returns the partition in "start/step" format.
func (p Partition) String() string {
	return fmt.Sprintf("%d/%d", p.StartIndex, p.Step)
}

// Validate checks StartIndex >= 0 and Step >= 1.
func (p Partition) Validate() error {
	if p.StartIndex < 0 {
		return fmt.Errorf("invalid start index %d", p.StartIndex)
	}
	if p.Step < 1 {
		return fmt.Errorf("invalid step %d", p.Step)
	}
	return nil
}

// Indices returns the ascending indices of the partition below frameCount.
func (p Partition) Indices(frameCount int) []int {
	if p.Step < 1 || p.StartIndex < 0 || p.StartIndex >= frameCount {
		return nil
	}
	out := make([]int, 0, p.Size(frameCount))
	for i := p.StartIndex; i < frameCount; i += p.Step {
		out = append(out, i)
	}
	return out
}

// Size returns the number of indices the partition covers below frameCount.
func (p Partition) Size(frameCount int) int {
	if p.Step < 1 || p.StartIndex < 0 || p.StartIndex >= frameCount {
		return 0
	}
	return (frameCount - p.StartIndex + p.Step - 1) / p.Step
}

// ForWorkers returns one partition per worker ordinal.
func ForWorkers(workers int) ([]Partition, error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	parts := make([]Partition, workers)
	for s := range parts {
		parts[s] = Partition{StartIndex: s, Step: workers}
	}
	return parts, nil
}

// Indices returns the ascending indices s, s+W, s+2W, ... below frameCount
// assigned to worker s of W.
func Indices(frameCount, workers, ordinal int) ([]int, error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	if ordinal < 0 || ordinal >= workers {
		return nil, fmt.Errorf("worker ordinal %d out of range [0, %d)", ordinal, workers)
	}
	return Partition{StartIndex: ordinal, Step: workers}.Indices(frameCount), nil
}
