// Package memory holds in-process adapters used by unit tests and by the
// daemon's offline mode, where no remote backend is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{collections: make(map[string]map[string]map[string]any)}
}

func (s *DocumentStore) List(_ context.Context, collection string, filter ports.Filter) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]ports.Document, 0)
	for id, fields := range s.collections[collection] {
		if !matches(fields, filter) {
			continue
		}
		docs = append(docs, ports.Document{ID: id, Fields: cloneFields(fields)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *DocumentStore) Create(_ context.Context, collection, id string, fields map[string]any) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]any)
	}
	if _, exists := s.collections[collection][id]; exists {
		return ports.Document{}, fmt.Errorf("%w: %s/%s", domain.ErrConflict, collection, id)
	}
	s.collections[collection][id] = cloneFields(fields)
	return ports.Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *DocumentStore) Update(_ context.Context, collection, id string, fields map[string]any) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.collections[collection][id]
	if !ok {
		return ports.Document{}, domain.ErrNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return ports.Document{ID: id, Fields: cloneFields(existing)}, nil
}

func (s *DocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func matches(fields map[string]any, filter ports.Filter) bool {
	for key, want := range filter {
		got, ok := fields[key]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cloneFields(fields map[string]any) map[string]any {
	cloned := make(map[string]any, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}
	return cloned
}
