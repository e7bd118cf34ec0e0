package memory

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/fingerprint"
	"github.com/vietddude/framehash/internal/infra/storage"
)

type lease struct {
	owner   string
	expires time.Time
}

type MemoryStorage struct {
	objects      map[string][]byte
	passes       map[string]int
	leases       map[string]lease
	reports      map[string]domain.PassReport
	fingerprints map[string]map[int]domain.FingerprintRecord
	now          func() time.Time
	mu           sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects:      make(map[string][]byte),
		passes:       make(map[string]int),
		leases:       make(map[string]lease),
		reports:      make(map[string]domain.PassReport),
		fingerprints: make(map[string]map[int]domain.FingerprintRecord),
		now:          time.Now,
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// -----------------------------------------------------------------------------
// Object Store
// -----------------------------------------------------------------------------

type ObjectStore struct {
	store *MemoryStorage
}

func NewObjectStore(store *MemoryStorage) *ObjectStore {
	return &ObjectStore{store: store}
}

func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	data, ok := s.store.objects[objectKey(bucket, key)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return slices.Clone(data), nil
}

func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.objects[objectKey(bucket, key)] = slices.Clone(data)
	return nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	full := objectKey(bucket, prefix)
	var keys []string
	for k := range s.store.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// -----------------------------------------------------------------------------
// Pass Ledger
// -----------------------------------------------------------------------------

type Ledger struct {
	store *MemoryStorage
}

func NewLedger(store *MemoryStorage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) AcquireLease(ctx context.Context, manifest, owner string, ttl time.Duration) (bool, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	now := l.store.now()
	if cur, ok := l.store.leases[manifest]; ok && cur.owner != owner && now.Before(cur.expires) {
		return false, nil
	}
	l.store.leases[manifest] = lease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (l *Ledger) ReleaseLease(ctx context.Context, manifest, owner string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if cur, ok := l.store.leases[manifest]; ok && cur.owner == owner {
		delete(l.store.leases, manifest)
	}
	return nil
}

func (l *Ledger) IncrementPasses(ctx context.Context, manifest string) (int, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.passes[manifest]++
	return l.store.passes[manifest], nil
}

func (l *Ledger) Passes(ctx context.Context, manifest string) (int, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.store.passes[manifest], nil
}

func (l *Ledger) SaveReport(ctx context.Context, report domain.PassReport) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.reports[report.Manifest] = report
	return nil
}

func (l *Ledger) LastReport(ctx context.Context, manifest string) (*domain.PassReport, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	r, ok := l.store.reports[manifest]
	if !ok {
		return nil, storage.ErrReportNotFound
	}
	return &r, nil
}

func (l *Ledger) Reset(ctx context.Context, manifest string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.passes, manifest)
	delete(l.store.leases, manifest)
	delete(l.store.reports, manifest)
	return nil
}

// -----------------------------------------------------------------------------
// Fingerprint Repository
// -----------------------------------------------------------------------------

type FingerprintRepo struct {
	store *MemoryStorage
}

func NewFingerprintRepo(store *MemoryStorage) *FingerprintRepo {
	return &FingerprintRepo{store: store}
}

func (r *FingerprintRepo) SaveBatch(ctx context.Context, records []domain.FingerprintRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range records {
		m, ok := r.store.fingerprints[rec.Manifest]
		if !ok {
			m = make(map[int]domain.FingerprintRecord)
			r.store.fingerprints[rec.Manifest] = m
		}
		rec.Distance = 0
		m[rec.Index] = rec
	}
	return nil
}

func (r *FingerprintRepo) FindNearDuplicates(
	ctx context.Context,
	manifest string,
	hash string,
	limit int,
) ([]domain.FingerprintRecord, error) {
	if _, err := fingerprint.ParseHash(hash); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.FingerprintRecord
	for _, rec := range r.store.fingerprints[manifest] {
		d, err := fingerprint.Distance(hash, rec.Hash)
		if err != nil {
			continue
		}
		rec.Distance = math.Sqrt(float64(d))
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.FingerprintRecord) int {
		if a.Distance != b.Distance {
			if a.Distance < b.Distance {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FingerprintRepo) Count(ctx context.Context, manifest string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.fingerprints[manifest]), nil
}

func (r *FingerprintRepo) DeleteManifest(ctx context.Context, manifest string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.fingerprints, manifest)
	return nil
}
