package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/infra/retry"
	"github.com/vietddude/framehash/internal/infra/storage"
	"github.com/vietddude/framehash/internal/infra/storage/memory"
)

const (
	bucket = "media"
	prefix = "out/frameCapture"
)

type fixture struct {
	store  storage.ObjectStore
	ledger *memory.Ledger
	sink   *memory.FingerprintRepo
}

func pngFrame(t *testing.T, seed int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			if (x/(seed%3+1)+y/2)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 200})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// newFixture stores n frame images and, when withManifest is set, a manifest
// listing them.
func newFixture(t *testing.T, n int, withManifest bool) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.NewMemoryStorage()
	f := &fixture{
		store:  memory.NewObjectStore(mem),
		ledger: memory.NewLedger(mem),
		sink:   memory.NewFingerprintRepo(mem),
	}

	frames := make([]domain.Frame, n)
	for i := range frames {
		frames[i] = domain.Frame{Name: fmt.Sprintf("frame.%d.jpg", i)}
		_ = f.store.Put(ctx, bucket, prefix+"/"+frames[i].Name, pngFrame(t, i))
	}
	if withManifest {
		data, _ := json.Marshal(frames)
		_ = f.store.Put(ctx, bucket, prefix+"/frameHash.json", data)
	}
	return f
}

func (f *fixture) scheduler(cfg Config) *Scheduler {
	return New(cfg, f.store, f.ledger, f.sink, retry.NewStrategy(retry.Options{MaxAttempts: 2}))
}

func request() Request {
	return Request{
		Bucket:  bucket,
		Prefix:  prefix,
		Capture: manifest.Capture{FPS: 30, Mode: domain.CaptureModeAll},
	}
}

func TestRequest_Keys(t *testing.T) {
	req := request()
	if req.Key() != "out/frameCapture/frameHash.json" {
		t.Errorf("Key() = %s", req.Key())
	}
	if req.ID() != "media/out/frameCapture/frameHash.json" {
		t.Errorf("ID() = %s", req.ID())
	}
	req.ManifestName = "custom.json"
	if req.Key() != "out/frameCapture/custom.json" {
		t.Errorf("Key() = %s", req.Key())
	}
}

func TestRunPass_Parallel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, true)
	s := f.scheduler(Config{Workers: 3, SequentialThreshold: -1})

	report, err := s.RunPass(ctx, request())
	if err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	if !report.Completed || report.Progress != 100 || report.Processed != 10 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Passes != 1 || report.Workers != 3 {
		t.Errorf("passes=%d workers=%d; want 1, 3", report.Passes, report.Workers)
	}

	m, err := manifest.Load(ctx, f.store, bucket, request().Key())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !m.Complete() {
		t.Errorf("persisted manifest unresolved: %v", m.Unresolved())
	}
	for i, fr := range m.Frames {
		if fr.Name != fmt.Sprintf("frame.%d.jpg", i) {
			t.Errorf("frame %d = %s, order changed", i, fr.Name)
		}
	}

	if n, _ := f.sink.Count(ctx, request().ID()); n != 10 {
		t.Errorf("indexed = %d, want 10", n)
	}
	last, err := f.ledger.LastReport(ctx, request().ID())
	if err != nil || !last.Completed {
		t.Errorf("LastReport() = %+v, %v", last, err)
	}
}

func TestRunPass_SequentialBelowThreshold(t *testing.T) {
	f := newFixture(t, 5, true)
	s := f.scheduler(Config{Workers: 8})

	report, err := s.RunPass(context.Background(), request())
	if err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	if report.Workers != 1 {
		t.Errorf("Workers = %d, want 1", report.Workers)
	}
	if !report.Completed {
		t.Errorf("report = %+v", report)
	}
}

func TestRunPass_BuildsMissingManifest(t *testing.T) {
	f := newFixture(t, 4, false)
	s := f.scheduler(Config{Workers: 2})

	report, err := s.RunPass(context.Background(), request())
	if err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	if report.Total != 4 || !report.Completed {
		t.Errorf("report = %+v", report)
	}
}

func TestRunPass_AlreadyComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, true)
	s := f.scheduler(Config{})

	if _, err := s.RunPass(ctx, request()); err != nil {
		t.Fatalf("first RunPass() error: %v", err)
	}
	report, err := s.RunPass(ctx, request())
	if err != nil {
		t.Fatalf("second RunPass() error: %v", err)
	}
	if !report.Completed || report.Passes != 1 {
		t.Errorf("report = %+v, want completed without a new pass", report)
	}
}

func TestRunPass_LeaseHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, true)
	s := f.scheduler(Config{})

	if ok, _ := f.ledger.AcquireLease(ctx, request().ID(), "other", time.Minute); !ok {
		t.Fatal("setup: AcquireLease failed")
	}

	_, err := s.RunPass(ctx, request())
	if !errors.Is(err, ErrPassInProgress) {
		t.Errorf("RunPass() error = %v, want ErrPassInProgress", err)
	}
}

func TestRunPass_ReleasesLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, true)
	s := f.scheduler(Config{})

	if _, err := s.RunPass(ctx, request()); err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	if ok, _ := f.ledger.AcquireLease(ctx, request().ID(), "other", time.Minute); !ok {
		t.Error("lease still held after the pass")
	}
}

func TestRun_ResumesAcrossPassesUntilLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, true)
	// The budget is shorter than the buffer, so each pass does no frame work.
	s := f.scheduler(Config{
		Workers:        1,
		MaxPasses:      3,
		Budget:         time.Nanosecond,
		DeadlineBuffer: time.Minute,
	})

	for i := 1; i <= 3; i++ {
		report, err := s.Run(ctx, request())
		if err != nil {
			t.Fatalf("Run() #%d error: %v", i, err)
		}
		if report.Passes != i || report.Processed != 0 || report.Completed {
			t.Fatalf("Run() #%d report = %+v, want an empty pass", i, report)
		}
	}

	report, err := s.Run(ctx, request())
	if !errors.Is(err, ErrPassLimit) {
		t.Fatalf("Run() error = %v, want ErrPassLimit", err)
	}
	if report == nil || report.Passes != 3 || report.Completed {
		t.Fatalf("report = %+v, want the limit report", report)
	}

	// Raising the limit and the budget lets the run finish.
	s.SetConfig(Config{Workers: 2, MaxPasses: 20})
	report, err = s.Run(ctx, request())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Completed || report.Passes != 4 || report.Processed != 10 {
		t.Errorf("report = %+v, want completed on pass 4", report)
	}
}

func TestRun_StopsAtCallerDeadline(t *testing.T) {
	f := newFixture(t, 10, true)
	s := f.scheduler(Config{Workers: 1, DeadlineBuffer: time.Minute})

	req := request()
	req.Deadline = time.Now()

	report, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Passes != 1 || report.Completed || report.Processed != 0 {
		t.Errorf("report = %+v, want one empty pass", report)
	}
}

func TestRun_BudgetShorterThanBuffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 40, true)
	s := f.scheduler(Config{
		Workers:             2,
		SequentialThreshold: -1,
		MaxPasses:           100,
		DeadlineBuffer:      time.Minute,
	})

	req := request()
	req.Deadline = time.Now().Add(300 * time.Millisecond)

	report, err := s.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Processed != 0 || report.Passes != 1 {
		t.Errorf("report = %+v, want no frames in a single pass", report)
	}

	m, _ := manifest.Load(ctx, f.store, bucket, request().Key())
	if got := len(m.Unresolved()); got != 40 {
		t.Errorf("unresolved = %d, want 40", got)
	}
}

func TestRunPass_FetchFailuresCountAsProcessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4, true)
	_ = f.store.Put(ctx, bucket, prefix+"/frame.2.jpg", []byte("corrupt"))
	s := f.scheduler(Config{})

	report, err := s.RunPass(ctx, request())
	if err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	if !report.Completed || report.Failed != 1 || report.Processed != 4 {
		t.Errorf("report = %+v", report)
	}
	// The sentinel is not indexed.
	if n, _ := f.sink.Count(ctx, request().ID()); n != 3 {
		t.Errorf("indexed = %d, want 3", n)
	}
}

func TestStatusAndReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4, true)
	s := f.scheduler(Config{})

	report, err := s.Status(ctx, request())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if report.Progress != 0 || report.Passes != 0 || report.Total != 4 {
		t.Errorf("Status() before run = %+v", report)
	}

	if _, err := s.RunPass(ctx, request()); err != nil {
		t.Fatalf("RunPass() error: %v", err)
	}
	report, _ = s.Status(ctx, request())
	if !report.Completed || report.Passes != 1 || report.RunID == "" {
		t.Errorf("Status() after run = %+v", report)
	}

	if err := s.Reset(ctx, request(), true); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	report, _ = s.Status(ctx, request())
	if report.Passes != 0 || report.Processed != 0 {
		t.Errorf("Status() after reset = %+v", report)
	}
	if n, _ := f.sink.Count(ctx, request().ID()); n != 0 {
		t.Errorf("indexed after reset = %d, want 0", n)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{Budget: 5 * time.Minute}.withDefaults()
	if cfg.MaxPasses != 10 || cfg.SequentialThreshold != 100 || cfg.Buffer != 64 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	if cfg.LeaseTTL != 6*time.Minute {
		t.Errorf("LeaseTTL = %v, want 6m", cfg.LeaseTTL)
	}
	if cfg.Workers <= 0 || cfg.DeadlineBuffer != time.Minute {
		t.Errorf("Workers = %d, DeadlineBuffer = %v", cfg.Workers, cfg.DeadlineBuffer)
	}

	cfg = Config{DeadlineBuffer: -1, SequentialThreshold: -1}.withDefaults()
	if cfg.DeadlineBuffer != 0 || cfg.SequentialThreshold != -1 {
		t.Errorf("withDefaults() = %+v, want negatives preserved as disabled", cfg)
	}
}
