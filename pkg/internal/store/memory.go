package store

import (
	"context"
	"sync"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process. It backs development runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]models.Document
	hub  *Hub
}

func NewMemory(hub *Hub) *MemoryStore {
	if hub == nil {
		hub = NewHub()
	}
	return &MemoryStore{
		data: make(map[string]map[string]models.Document),
		hub:  hub,
	}
}

func (s *MemoryStore) Hub() *Hub {
	return s.hub
}

func (s *MemoryStore) Create(ctx context.Context, collection string, doc models.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Insert(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Insert(ctx context.Context, collection, id string, doc models.Document) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}

	s.mu.Lock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]models.Document)
	}
	if _, ok := s.data[collection][id]; ok {
		s.mu.Unlock()
		return models.ErrAlreadyExists
	}
	s.data[collection][id] = doc.Clone()
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, query Query) (Snapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, transient(err)
	}

	s.mu.RLock()
	records := make([]Record, 0, len(s.data[collection]))
	for id, doc := range s.data[collection] {
		records = append(records, Record{ID: id, Data: doc.Clone()})
	}
	s.mu.RUnlock()

	return Evaluate(records, query), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, query Query, fn ChangeFunc) (Unsubscribe, error) {
	return subscribe(ctx, s.hub, s, collection, query, fn)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, partial models.Document) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return models.ErrNotFound
	}
	for k, v := range partial {
		doc[k] = v
	}
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}

	s.mu.Lock()
	if _, ok := s.data[collection][id]; !ok {
		s.mu.Unlock()
		return models.ErrNotFound
	}
	delete(s.data[collection], id)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return models.ErrNotFound
	}
	current, _ := models.ToInt64(doc[field])
	doc[field] = max(current+delta, 0)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *MemoryStore) Close() error {
	s.hub.Close()
	return nil
}
