package domain

import "time"

// PassReport summarizes the state of a manifest after one processing pass.
type PassReport struct {
	RunID      string    `json:"runId,omitempty"`
	Manifest   string    `json:"manifest"`
	Completed  bool      `json:"completed"`
	Progress   int       `json:"progress"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Passes     int       `json:"passes"`
	Workers    int       `json:"workers,omitempty"`
	DurationMs int64     `json:"durationMs,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// FingerprintRecord is one indexed frame fingerprint.
type FingerprintRecord struct {
	Manifest  string  `db:"manifest" json:"manifest"`
	Index     int     `db:"frame_index" json:"index"`
	Name      string  `db:"name" json:"name"`
	FrameNo   int     `db:"frame_no" json:"frameNo"`
	Timestamp int64   `db:"timestamp_ms" json:"timestamp"`
	Hash      string  `db:"hash" json:"hash"`
	Sharpness float64 `db:"sharpness" json:"sharpness"`
	// Distance is set by similarity queries only.
	Distance  float64 `db:"distance" json:"distance,omitempty"`
}
