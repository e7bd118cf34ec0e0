package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInvocation is returned when invocation parameters are missing or out of range.
var ErrInvalidInvocation = errors.New("invalid invocation")

// Invocation holds the parameters of one worker run. ManifestKey is the
// manifest object name relative to Prefix. An empty Prefix is the bucket root.
type Invocation struct {
	StorageLocation string
	Prefix          string
	ManifestKey     string
	StartIndex      int
	Step            int
	Deadline        time.Time

	noPrefix bool // decoded without a prefix field
}

// Validate reports every missing or invalid field in one error.
func (inv Invocation) Validate() error {
	var missing []string
	if inv.StorageLocation == "" {
		missing = append(missing, "storageLocation")
	}
	if inv.noPrefix {
		missing = append(missing, "prefix")
	}
	if inv.ManifestKey == "" {
		missing = append(missing, "manifestKey")
	}
	if inv.StartIndex < 0 {
		missing = append(missing, "startIndex")
	}
	if inv.Step < 1 {
		missing = append(missing, "step")
	}
	if inv.Deadline.IsZero() {
		missing = append(missing, "deadline")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid (%s)", ErrInvalidInvocation, strings.Join(missing, ", "))
	}
	return nil
}

type invocationJSON struct {
	StorageLocation string  `json:"storageLocation"`
	Prefix          *string `json:"prefix"`
	ManifestKey     string  `json:"manifestKey"`
	StartIndex      *int    `json:"startIndex"`
	Step            *int    `json:"step"`
	Deadline        *int64  `json:"deadline"` // epoch millis
}

// MarshalJSON encodes the deadline as epoch milliseconds.
func (inv Invocation) MarshalJSON() ([]byte, error) {
	deadline := inv.Deadline.UnixMilli()
	return json.Marshal(invocationJSON{
		StorageLocation: inv.StorageLocation,
		Prefix:          &inv.Prefix,
		ManifestKey:     inv.ManifestKey,
		StartIndex:      &inv.StartIndex,
		Step:            &inv.Step,
		Deadline:        &deadline,
	})
}

// UnmarshalJSON decodes an invocation. Absent fields are left invalid so
// Validate reports them; an empty prefix is kept as the bucket root.
func (inv *Invocation) UnmarshalJSON(data []byte) error {
	var raw invocationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*inv = Invocation{
		StorageLocation: raw.StorageLocation,
		ManifestKey:     raw.ManifestKey,
		StartIndex:      -1,
		Step:            0,
		noPrefix:        raw.Prefix == nil,
	}
	if raw.Prefix != nil {
		inv.Prefix = *raw.Prefix
	}
	if raw.StartIndex != nil {
		inv.StartIndex = *raw.StartIndex
	}
	if raw.Step != nil {
		inv.Step = *raw.Step
	}
	if raw.Deadline != nil {
		inv.Deadline = time.UnixMilli(*raw.Deadline)
	}
	return nil
}

// FatalError is reported when a worker cannot start processing frames.
// It carries the original invocation so the caller can correlate it.
type FatalError struct {
	Invocation Invocation
	Err        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("worker %d/%d on %s: %v",
		e.Invocation.StartIndex, e.Invocation.Step, e.Invocation.ManifestKey, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the fatal report: invocation fields plus "error".
func (e *FatalError) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(e.Invocation)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["error"] = e.Err.Error()
	return json.Marshal(fields)
}
