package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/infra/storage"
)

// reportTTL bounds how long a finished manifest's state lingers.
const reportTTL = 7 * 24 * time.Hour

// releaseScript deletes the lease only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Ledger implements storage.PassLedger using Redis.
type Ledger struct {
	rdb *redis.Client
}

// NewLedger creates a new Redis-backed pass ledger.
func NewLedger(client *Client) *Ledger {
	return &Ledger{rdb: client.rdb}
}

// AcquireLease takes the pass lease with SET NX and a TTL.
func (l *Ledger) AcquireLease(ctx context.Context, manifest, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, leaseKey(manifest), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseLease releases the lease if owner still holds it.
func (l *Ledger) ReleaseLease(ctx context.Context, manifest, owner string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{leaseKey(manifest)}, owner).Err(); err != nil {
		return fmt.Errorf("release lease failed: %w", err)
	}
	return nil
}

// IncrementPasses increments the pass counter.
func (l *Ledger) IncrementPasses(ctx context.Context, manifest string) (int, error) {
	key := passesKey(manifest)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr failed: %w", err)
	}
	if err := l.rdb.Expire(ctx, key, reportTTL).Err(); err != nil {
		return 0, fmt.Errorf("expire failed: %w", err)
	}
	return int(n), nil
}

// Passes returns the pass counter, zero when unset.
func (l *Ledger) Passes(ctx context.Context, manifest string) (int, error) {
	n, err := l.rdb.Get(ctx, passesKey(manifest)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get failed: %w", err)
	}
	return n, nil
}

// SaveReport stores the report as JSON.
func (l *Ledger) SaveReport(ctx context.Context, report domain.PassReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal pass report: %w", err)
	}
	if err := l.rdb.Set(ctx, reportKey(report.Manifest), data, reportTTL).Err(); err != nil {
		return fmt.Errorf("failed to set pass report: %w", err)
	}
	return nil
}

// LastReport loads the latest report.
func (l *Ledger) LastReport(ctx context.Context, manifest string) (*domain.PassReport, error) {
	data, err := l.rdb.Get(ctx, reportKey(manifest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var report domain.PassReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pass report: %w", err)
	}
	return &report, nil
}

// Reset removes every key of the manifest.
func (l *Ledger) Reset(ctx context.Context, manifest string) error {
	return l.rdb.Del(ctx, leaseKey(manifest), passesKey(manifest), reportKey(manifest)).Err()
}
