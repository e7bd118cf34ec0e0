package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/infra/storage"
	"github.com/vietddude/framehash/internal/infra/storage/memory"
)

func newStore() storage.ObjectStore {
	return memory.NewObjectStore(memory.NewMemoryStorage())
}

func framesN(n int) []domain.Frame {
	frames := make([]domain.Frame, n)
	for i := range frames {
		frames[i] = domain.Frame{Name: "frame." + string(rune('0'+i)) + ".jpg"}
	}
	return frames
}

func TestDefaultKey(t *testing.T) {
	if got := DefaultKey("out/frameCapture/"); got != "out/frameCapture/frameHash.json" {
		t.Errorf("DefaultKey() = %s", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"empty array", `[]`, 0, false},
		{"frames", `[{"name":"frame.1.jpg"},{"name":"frame.2.jpg","hash":"undefined","sharpness":0}]`, 2, false},
		{"not json", `{`, 0, true},
		{"object", `{"name":"x"}`, 0, true},
		{"missing name", `[{"hash":"abc"}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidManifest) {
					t.Errorf("Decode() error = %v, want ErrInvalidManifest", err)
				}
				return
			}
			if len(frames) != tt.want {
				t.Errorf("len = %d, want %d", len(frames), tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	m := &Manifest{Frames: framesN(3)}

	if err := m.Merge(domain.Result{Index: 1, Hash: "00000000000000ff", Sharpness: 12.5}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if err := m.Merge(domain.FailedResult(2)); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	for _, idx := range []int{-1, 3} {
		if err := m.Merge(domain.Result{Index: idx, Hash: "x"}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Merge(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}

	f := m.Frames[1]
	if f.Hash != "00000000000000ff" || f.Sharpness == nil || *f.Sharpness != 12.5 {
		t.Errorf("frame 1 = %+v", f)
	}
	if !m.Frames[2].Failed() || *m.Frames[2].Sharpness != 0 {
		t.Errorf("frame 2 = %+v, want sentinel", m.Frames[2])
	}

	unresolved := m.Unresolved()
	if len(unresolved) != 1 || unresolved[0] != 0 {
		t.Errorf("Unresolved() = %v, want [0]", unresolved)
	}
	processed, failed, total := m.Counts()
	if processed != 2 || failed != 1 || total != 3 {
		t.Errorf("Counts() = %d, %d, %d; want 2, 1, 3", processed, failed, total)
	}
	if m.Progress() != 67 {
		t.Errorf("Progress() = %d, want 67", m.Progress())
	}
	if m.Complete() {
		t.Error("Complete() = true, want false")
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		total, done int
		want        int
	}{
		{0, 0, 100},
		{10, 0, 0},
		{10, 5, 50},
		{8, 1, 13},
		{200, 1, 1},
		{200, 199, 100},
		{3, 3, 100},
	}

	for _, tt := range tests {
		m := &Manifest{Frames: make([]domain.Frame, tt.total)}
		for i := 0; i < tt.done; i++ {
			m.Frames[i].Hash = "h"
		}
		if got := m.Progress(); got != tt.want {
			t.Errorf("Progress(%d/%d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestSaveLoad_PreservesOrderAndFields(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	m := &Manifest{Bucket: "media", Key: "v/frameHash.json", Frames: framesN(4)}
	m.Frames[0].FrameNo = 0
	m.Frames[1].FrameNo = 30
	m.Frames[1].Timestamp = 1000
	_ = m.Merge(domain.Result{Index: 1, Hash: "0123456789abcdef", Sharpness: 3})
	_ = m.Merge(domain.FailedResult(3))

	if err := m.Save(ctx, store); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(ctx, store, "media", "v/frameHash.json")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Frames) != 4 {
		t.Fatalf("len = %d, want 4", len(loaded.Frames))
	}
	for i := range m.Frames {
		if loaded.Frames[i].Name != m.Frames[i].Name || loaded.Frames[i].Hash != m.Frames[i].Hash {
			t.Errorf("frame %d = %+v, want %+v", i, loaded.Frames[i], m.Frames[i])
		}
	}
	if loaded.Frames[0].Sharpness != nil {
		t.Error("unprocessed frame should have no sharpness")
	}

	// Persisted form omits hash and sharpness for unprocessed frames.
	raw, _ := store.Get(ctx, "media", "v/frameHash.json")
	var generic []map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := generic[0]["hash"]; ok {
		t.Error("frame 0 should not carry a hash key")
	}
	if generic[3]["hash"] != domain.UndefinedHash {
		t.Errorf("frame 3 hash = %v, want sentinel", generic[3]["hash"])
	}
	if generic[3]["sharpness"] != float64(0) {
		t.Errorf("frame 3 sharpness = %v, want 0", generic[3]["sharpness"])
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	if _, err := Load(ctx, store, "media", "missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("Load() missing error = %v, want ErrObjectNotFound", err)
	}

	_ = store.Put(ctx, "media", "bad.json", []byte("not json"))
	if _, err := Load(ctx, store, "media", "bad.json"); !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("Load() bad error = %v, want ErrInvalidManifest", err)
	}
}

func TestRecords_SkipsUnresolvedAndFailed(t *testing.T) {
	m := &Manifest{Frames: framesN(3)}
	_ = m.Merge(domain.Result{Index: 0, Hash: "0000000000000001", Sharpness: 9})
	_ = m.Merge(domain.FailedResult(1))

	recs := m.Records("media/v/frameHash.json")
	if len(recs) != 1 {
		t.Fatalf("Records() = %+v, want 1 record", recs)
	}
	if recs[0].Index != 0 || recs[0].Sharpness != 9 || recs[0].Manifest != "media/v/frameHash.json" {
		t.Errorf("record = %+v", recs[0])
	}
}
