package cache

import (
	"context"
	"sync"
	"time"

	"bizdesk/backend/internal/domain"
)

// SnapshotCache holds catalog snapshots shared between form sessions.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*domain.CatalogSnapshot, bool, error)
	Set(ctx context.Context, key string, value *domain.CatalogSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DraftStore parks invoice drafts between events.
type DraftStore interface {
	Get(ctx context.Context, id string) (*domain.InvoiceDraft, bool, error)
	Save(ctx context.Context, draft *domain.InvoiceDraft, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Get(_ context.Context, _ string) (*domain.CatalogSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) Set(_ context.Context, _ string, _ *domain.CatalogSnapshot, _ time.Duration) error {
	return nil
}

func (NoopSnapshotCache) Delete(_ context.Context, _ string) error {
	return nil
}

type memoryDraft struct {
	draft     domain.InvoiceDraft
	expiresAt time.Time
}

// MemoryDraftStore keeps drafts in process. Expired drafts are dropped on
// access and swept on every save.
type MemoryDraftStore struct {
	mu     sync.Mutex
	now    func() time.Time
	drafts map[string]memoryDraft
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{now: time.Now, drafts: make(map[string]memoryDraft)}
}

func (s *MemoryDraftStore) Get(_ context.Context, id string) (*domain.InvoiceDraft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.drafts[id]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.drafts, id)
		return nil, false, nil
	}
	draft := cloneDraft(entry.draft)
	return &draft, true, nil
}

func (s *MemoryDraftStore) Save(_ context.Context, draft *domain.InvoiceDraft, ttl time.Duration) error {
	if draft == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.drafts {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.drafts, id)
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	s.drafts[draft.ID] = memoryDraft{draft: cloneDraft(*draft), expiresAt: expiresAt}
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, id)
	return nil
}

func cloneDraft(src domain.InvoiceDraft) domain.InvoiceDraft {
	dup := src
	dup.Form.Lines = append(src.Form.Lines[:0:0], src.Form.Lines...)
	dup.Catalog = append(dup.Catalog[:0:0], src.Catalog...)
	dup.Customers = append(dup.Customers[:0:0], src.Customers...)
	dup.Errors = append(dup.Errors[:0:0], src.Errors...)
	return dup
}
