package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/renzlucero/capstonehub/internal/domain"
	"github.com/renzlucero/capstonehub/internal/repository"
	"gorm.io/gorm"
)

// stubEmbedder is an in-memory EmbeddingProvider for service tests.
type stubEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	embedDelay time.Duration
	embedErr   error
	vector     []float32

	models    []string
	modelsErr error
}

func (f *stubEmbedder) Embed(ctx context.Context, text string, timeout time.Duration) ([]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	if f.embedDelay > 0 {
		select {
		case <-time.After(f.embedDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, ctx.Err())
		}
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *stubEmbedder) ListModels(ctx context.Context) ([]string, error) {
	if f.modelsErr != nil {
		return nil, f.modelsErr
	}
	return f.models, nil
}

func (f *stubEmbedder) Model() string {
	return "nomic-embed-text"
}

func (f *stubEmbedder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// memoryCache is an in-memory WarmupCache with the same lease semantics as
// the database-backed one.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]memoryCacheEntry
	locks   map[string]memoryCacheEntry
	nextID  int
	now     func() time.Time
	ableErr error
}

type memoryCacheEntry struct {
	value     time.Time
	owner     string
	expiresAt time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		values: make(map[string]memoryCacheEntry),
		locks:  make(map[string]memoryCacheEntry),
		now:    time.Now,
	}
}

func (c *memoryCache) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ableErr != nil {
		return time.Time{}, false, c.ableErr
	}
	entry, ok := c.values[key]
	if !ok || c.now().After(entry.expiresAt) {
		return time.Time{}, false, nil
	}
	return entry.value, true, nil
}

func (c *memoryCache) PutTime(ctx context.Context, key string, value, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ableErr != nil {
		return c.ableErr
	}
	c.values[key] = memoryCacheEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (c *memoryCache) AcquireLock(ctx context.Context, name string, lease time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ableErr != nil {
		return "", false, c.ableErr
	}
	if entry, ok := c.locks[name]; ok && c.now().Before(entry.expiresAt) {
		return "", false, nil
	}
	c.nextID++
	owner := fmt.Sprintf("owner-%d", c.nextID)
	c.locks[name] = memoryCacheEntry{owner: owner, expiresAt: c.now().Add(lease)}
	return owner, true, nil
}

func (c *memoryCache) ReleaseLock(ctx context.Context, name, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.locks[name]; ok && entry.owner == owner {
		delete(c.locks, name)
	}
	return nil
}

// fakeCategoryStore backs category validation in service tests.
type fakeCategoryStore struct {
	names     map[int64]string
	existsErr error
	nameErr   error
}

func (f *fakeCategoryStore) Exists(ctx context.Context, id int64) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.names[id]
	return ok, nil
}

func (f *fakeCategoryStore) NameByID(ctx context.Context, id int64) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	name, ok := f.names[id]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return name, nil
}

// fakeVectorIndex records calls and serves canned search results.
type fakeVectorIndex struct {
	mu sync.Mutex

	upsertErr error
	deleteErr error
	searchErr error
	hits      []repository.ScoredPoint

	upsertIDs   []int64
	deleteIDs   []int64
	gotVector   []float32
	gotLimit    int
	gotCategory int64
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, id int64, vector []float32, payload *repository.CapstonePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertIDs = append(f.upsertIDs, id)
	return nil
}

func (f *fakeVectorIndex) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteIDs = append(f.deleteIDs, id)
	return f.deleteErr
}

func (f *fakeVectorIndex) Search(ctx context.Context, vector []float32, limit int, categoryID int64) ([]repository.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.gotVector = vector
	f.gotLimit = limit
	f.gotCategory = categoryID
	return f.hits, nil
}

// fakeCapstoneStore is an in-memory CapstoneStore.
type fakeCapstoneStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*domain.Capstone

	createErr     error
	markSyncedErr error

	markedSynced  []int64
	markedFailed  []int64
	markedPending []int64
	failureCauses []string
	archived      []int64
	restored      []int64
}

func newFakeCapstoneStore() *fakeCapstoneStore {
	return &fakeCapstoneStore{records: make(map[int64]*domain.Capstone)}
}

func (f *fakeCapstoneStore) Create(ctx context.Context, capstone *domain.Capstone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	capstone.ID = f.nextID
	clone := *capstone
	f.records[capstone.ID] = &clone
	return nil
}

func (f *fakeCapstoneStore) Update(ctx context.Context, capstone *domain.Capstone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[capstone.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	clone := *capstone
	f.records[capstone.ID] = &clone
	return nil
}

func (f *fakeCapstoneStore) GetByID(ctx context.Context, id int64) (*domain.Capstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeCapstoneStore) GetByIDWithArchived(ctx context.Context, id int64) (*domain.Capstone, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeCapstoneStore) List(ctx context.Context, q repository.CapstoneQuery) ([]domain.Capstone, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Capstone
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCapstoneStore) ListByEmbeddingStatus(ctx context.Context, statuses []domain.EmbeddingStatus, limit int) ([]domain.Capstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Capstone
	for _, record := range f.records {
		for _, status := range statuses {
			if record.EmbeddingStatus == status {
				out = append(out, *record)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCapstoneStore) MarkSynced(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markSyncedErr != nil {
		return f.markSyncedErr
	}
	if record, ok := f.records[id]; ok {
		record.EmbeddingStatus = domain.EmbeddingStatusSynced
		record.EmbeddingError = ""
		now := time.Now()
		record.EmbeddedAt = &now
	}
	f.markedSynced = append(f.markedSynced, id)
	return nil
}

func (f *fakeCapstoneStore) MarkEmbeddingFailed(ctx context.Context, id int64, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.EmbeddingStatus = domain.EmbeddingStatusFailed
		record.EmbeddingError = cause
	}
	f.markedFailed = append(f.markedFailed, id)
	f.failureCauses = append(f.failureCauses, cause)
	return nil
}

func (f *fakeCapstoneStore) MarkPending(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.EmbeddingStatus = domain.EmbeddingStatusPending
	}
	f.markedPending = append(f.markedPending, id)
	return nil
}

func (f *fakeCapstoneStore) SetDocumentKey(ctx context.Context, id int64, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.DocumentKey = key
	}
	return nil
}

func (f *fakeCapstoneStore) SetActive(ctx context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.IsActive = active
	}
	return nil
}

func (f *fakeCapstoneStore) Archive(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeCapstoneStore) Restore(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.restored = append(f.restored, id)
	return nil
}
