package manifest

import (
	"testing"

	"github.com/vietddude/framehash/internal/core/domain"
)

func TestAggregator_Consume(t *testing.T) {
	m := &Manifest{Key: "m", Frames: framesN(10)}
	agg := NewAggregator(m)

	even := make(chan domain.Result, 8)
	odd := make(chan domain.Result, 8)
	for i := 0; i < 10; i += 2 {
		if i == 4 {
			even <- domain.FailedResult(i)
			continue
		}
		even <- domain.Result{Index: i, Hash: "0000000000000000", Sharpness: float64(i)}
	}
	close(even)
	for i := 1; i < 10; i += 2 {
		odd <- domain.Result{Index: i, Hash: "ffffffffffffffff", Sharpness: float64(i)}
	}
	odd <- domain.Result{Index: 42, Hash: "x"}
	close(odd)

	agg.Consume(even, odd)

	if agg.Merged() != 10 || agg.Failed() != 1 || agg.Rejected() != 1 {
		t.Errorf("merged=%d failed=%d rejected=%d; want 10, 1, 1", agg.Merged(), agg.Failed(), agg.Rejected())
	}
	if !m.Complete() {
		t.Errorf("manifest incomplete: %v", m.Unresolved())
	}
	if !m.Frames[4].Failed() {
		t.Errorf("frame 4 = %+v, want sentinel", m.Frames[4])
	}
	if *m.Frames[7].Sharpness != 7 {
		t.Errorf("frame 7 sharpness = %v, want 7", *m.Frames[7].Sharpness)
	}
}

func TestAggregator_NoStreams(t *testing.T) {
	m := &Manifest{Frames: framesN(2)}
	agg := NewAggregator(m)
	agg.Consume()
	if agg.Merged() != 0 {
		t.Errorf("Merged() = %d, want 0", agg.Merged())
	}
}
