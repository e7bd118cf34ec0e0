package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/infra/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewLedger(client)
}

func TestKeys(t *testing.T) {
	if got := leaseKey("media/v/frameHash.json"); got != "framehash:lease:media/v/frameHash.json" {
		t.Errorf("leaseKey = %s", got)
	}
	if got := passesKey("m"); got != "framehash:passes:m" {
		t.Errorf("passesKey = %s", got)
	}
	if got := reportKey("m"); got != "framehash:report:m" {
		t.Errorf("reportKey = %s", got)
	}
}

func TestLedger_Lease(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	manifest := "test:" + uuid.NewString()
	t.Cleanup(func() { l.Reset(ctx, manifest) })

	ok, err := l.AcquireLease(ctx, manifest, "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(a) = %v, %v; want true", ok, err)
	}
	ok, err = l.AcquireLease(ctx, manifest, "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("AcquireLease(b) = %v, %v; want false", ok, err)
	}

	// Non-owner release is a no-op.
	if err := l.ReleaseLease(ctx, manifest, "b"); err != nil {
		t.Fatalf("ReleaseLease(b) error: %v", err)
	}
	if ok, _ := l.AcquireLease(ctx, manifest, "b", time.Minute); ok {
		t.Fatal("lease released by non-owner")
	}

	if err := l.ReleaseLease(ctx, manifest, "a"); err != nil {
		t.Fatalf("ReleaseLease(a) error: %v", err)
	}
	if ok, _ := l.AcquireLease(ctx, manifest, "b", time.Minute); !ok {
		t.Fatal("lease not released by owner")
	}
}

func TestLedger_PassesAndReport(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	manifest := "test:" + uuid.NewString()
	t.Cleanup(func() { l.Reset(ctx, manifest) })

	if n, _ := l.Passes(ctx, manifest); n != 0 {
		t.Errorf("Passes() = %d, want 0", n)
	}
	for want := 1; want <= 3; want++ {
		n, err := l.IncrementPasses(ctx, manifest)
		if err != nil || n != want {
			t.Fatalf("IncrementPasses() = %d, %v; want %d", n, err, want)
		}
	}

	if _, err := l.LastReport(ctx, manifest); !errors.Is(err, storage.ErrReportNotFound) {
		t.Errorf("LastReport() error = %v, want ErrReportNotFound", err)
	}
	report := domain.PassReport{Manifest: manifest, Progress: 40, Total: 10, Processed: 4, Passes: 3}
	if err := l.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error: %v", err)
	}
	got, err := l.LastReport(ctx, manifest)
	if err != nil {
		t.Fatalf("LastReport() error: %v", err)
	}
	if got.Progress != 40 || got.Passes != 3 {
		t.Errorf("LastReport() = %+v", got)
	}

	if err := l.Reset(ctx, manifest); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if n, _ := l.Passes(ctx, manifest); n != 0 {
		t.Errorf("Passes() after reset = %d, want 0", n)
	}
}
