package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore хранилище в памяти процесса: для тестов и локального запуска
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
	notifier    *LocalNotifier
	clock       *Clock
}

type MemoryOption func(*MemoryStore)

// WithClock подменяет часы, которыми проставляются ServerTimestamp
func WithClock(c *Clock) MemoryOption {
	return func(s *MemoryStore) {
		s.clock = c
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]Fields),
		notifier:    NewLocalNotifier(),
		clock:       NewClock(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notifier нужен тестам, чтобы дождаться подписки наблюдателей
func (s *MemoryStore) Notifier() *LocalNotifier {
	return s.notifier
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: fields.Clone()}, nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	if q.Collection == "" {
		return nil, ErrNoCollection
	}
	return q.Apply(s.snapshot(q.Collection)), nil
}

func (s *MemoryStore) Watch(ctx context.Context, q Query) (<-chan Batch, error) {
	return WatchCollection(ctx, s.notifier, q.Collection, func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, q)
	})
}

func (s *MemoryStore) WatchDocument(ctx context.Context, collection, id string) (<-chan Batch, error) {
	return WatchCollection(ctx, s.notifier, collection, func(ctx context.Context) ([]Document, error) {
		doc, err := s.Get(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	})
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := ulid.Make().String()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	if collection == "" {
		return ErrNoCollection
	}

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Fields)
		s.collections[collection] = docs
	}
	docs[id] = fields.Clone().Stamp(s.clock.Next())
	s.mu.Unlock()

	return s.notifier.Publish(ctx, collection)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	current, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged := current.Clone()
	for k, v := range fields.Clone().Stamp(s.clock.Next()) {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	s.mu.Unlock()

	return s.notifier.Publish(ctx, collection)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	delete(s.collections[collection], id)
	s.mu.Unlock()

	return s.notifier.Publish(ctx, collection)
}

func (s *MemoryStore) snapshot(collection string) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for id, fields := range s.collections[collection] {
		docs = append(docs, Document{ID: id, Fields: fields.Clone()})
	}
	return docs
}
