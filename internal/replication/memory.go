package replication

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store. It backs single-node deployments and
// tests; change delivery runs on one goroutine per watcher so callbacks
// never run under the store lock.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]json.RawMessage
	watchers map[string]map[int]*watcher
	nextID   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]json.RawMessage),
		watchers: make(map[string]map[int]*watcher),
	}
}

// Set writes the whole document at key and notifies watchers.
func (s *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	s.docs[key] = cloneRaw(value)
	targets := s.watchersFor(key)
	s.mu.Unlock()

	notify(targets, value)
	return nil
}

// Update merges top-level fields into the document at key.
func (s *MemoryStore) Update(ctx context.Context, key string, fields map[string]json.RawMessage) error {
	s.mu.Lock()
	existing, ok := s.docs[key]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(existing, &doc); err != nil {
		s.mu.Unlock()
		return err
	}
	for field, value := range fields {
		doc[field] = value
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.docs[key] = merged
	targets := s.watchersFor(key)
	s.mu.Unlock()

	notify(targets, merged)
	return nil
}

// Remove deletes the document at key.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

// Get fetches the document at key.
func (s *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(doc), nil
}

// Watch registers a change callback for the document at key.
func (s *MemoryStore) Watch(ctx context.Context, key string, fn func(json.RawMessage)) (func(), error) {
	w := newWatcher()
	go w.run(fn)

	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]*watcher)
	}
	id := s.nextID
	s.nextID++
	s.watchers[key][id] = w
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.watchers[key], id)
		s.mu.Unlock()
		w.close()
	}
	return cancel, nil
}

func (s *MemoryStore) watchersFor(key string) []*watcher {
	targets := make([]*watcher, 0, len(s.watchers[key]))
	for _, w := range s.watchers[key] {
		targets = append(targets, w)
	}
	return targets
}

func notify(targets []*watcher, value json.RawMessage) {
	for _, w := range targets {
		w.push(cloneRaw(value))
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// watcher queues change notifications for one subscription. The queue is
// unbounded so a slow callback cannot block writers.
type watcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []json.RawMessage
	closed bool
}

func newWatcher() *watcher {
	w := &watcher{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *watcher) push(raw json.RawMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue = append(w.queue, raw)
	w.cond.Signal()
}

func (w *watcher) run(fn func(json.RawMessage)) {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 && w.closed {
			w.mu.Unlock()
			return
		}
		raw := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		fn(raw)
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.cond.Broadcast()
}
