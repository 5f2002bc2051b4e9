// audit/repository.go
package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DocumentRef addresses one document's audit history.
type DocumentRef struct {
	Container  string `json:"container"`
	DocumentID string `json:"document_id"`
}

// QueryFilter narrows an entry search. Zero-value fields are ignored.
type QueryFilter struct {
	From       time.Time
	To         time.Time
	Container  string
	DocumentID string
	Limit      int
}

// Store persists audit entries. Entries are append-only: inserted once by
// capture and deleted only by retention cleanup.
type Store interface {
	// Insert stores the entry and returns it with its assigned id.
	Insert(ctx context.Context, entry Entry) (Entry, error)
	// LatestVersion returns the highest stored version for the document, or 0
	// when it has no history yet.
	LatestVersion(ctx context.Context, container, documentID string) (int, error)
	// ListByDocument returns up to limit entries for the document, sorted by
	// version descending.
	ListByDocument(ctx context.Context, container, documentID string, limit int) ([]Entry, error)
	// DeleteByID removes a single entry.
	DeleteByID(ctx context.Context, id string) error
	// Documents enumerates up to batchSize distinct documents with history.
	Documents(ctx context.Context, batchSize int) ([]DocumentRef, error)
	// Query searches entries within a time range, optionally filtered by
	// container and document, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)
}

// MemoryStore is an in-memory Store. It backs tests and deployments without
// an Elasticsearch cluster.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[DocumentRef][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[DocumentRef][]Entry)}
}

func (s *MemoryStore) Insert(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	ref := DocumentRef{Container: entry.Container, DocumentID: entry.DocumentID}
	s.entries[ref] = append(s.entries[ref], entry)
	return entry, nil
}

func (s *MemoryStore) LatestVersion(_ context.Context, container, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for _, entry := range s.entries[DocumentRef{Container: container, DocumentID: documentID}] {
		if entry.Version > latest {
			latest = entry.Version
		}
	}
	return latest, nil
}

func (s *MemoryStore) ListByDocument(_ context.Context, container, documentID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[DocumentRef{Container: container, DocumentID: documentID}]
	out := make([]Entry, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, stored := range s.entries {
		for i, entry := range stored {
			if entry.ID == id {
				s.entries[ref] = append(stored[:i], stored[i+1:]...)
				if len(s.entries[ref]) == 0 {
					delete(s.entries, ref)
				}
				return nil
			}
		}
	}
	return nil
}

func (s *MemoryStore) Documents(_ context.Context, batchSize int) ([]DocumentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]DocumentRef, 0, len(s.entries))
	for ref := range s.entries {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Container != refs[j].Container {
			return refs[i].Container < refs[j].Container
		}
		return refs[i].DocumentID < refs[j].DocumentID
	})
	if batchSize > 0 && len(refs) > batchSize {
		refs = refs[:batchSize]
	}
	return refs, nil
}

func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for ref, stored := range s.entries {
		if filter.Container != "" && ref.Container != filter.Container {
			continue
		}
		if filter.DocumentID != "" && ref.DocumentID != filter.DocumentID {
			continue
		}
		for _, entry := range stored {
			if !filter.From.IsZero() && entry.Timestamp.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && entry.Timestamp.After(filter.To) {
				continue
			}
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
