package domain

// UndefinedHash marks a frame whose bytes could not be fetched or decoded.
// It still counts as processed so later passes do not retry it.
const UndefinedHash = "undefined"

// Frame is one entry of the manifest.
type Frame struct {
	Name      string   `json:"name"`
	FrameNo   int      `json:"frameNo"`
	Timestamp int64    `json:"timestamp"` // milliseconds
	Hash      string   `json:"hash,omitempty"`
	Sharpness *float64 `json:"sharpness,omitempty"`
}

// Processed reports whether the frame already carries a hash.
func (f Frame) Processed() bool {
	return f.Hash != ""
}

// Failed reports whether the frame was processed with the failure sentinel.
func (f Frame) Failed() bool {
	return f.Hash == UndefinedHash
}

// Result is the per-frame message a worker streams to the aggregator.
type Result struct {
	Index     int     `json:"index"`
	Hash      string  `json:"hash"`
	Sharpness float64 `json:"sharpness"`
}

// FailedResult returns the sentinel result for an index.
func FailedResult(index int) Result {
	return Result{Index: index, Hash: UndefinedHash, Sharpness: 0}
}

// Failed reports whether r is the failure sentinel.
func (r Result) Failed() bool {
	return r.Hash == UndefinedHash
}
