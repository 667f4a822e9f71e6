package session

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	blob    []byte
	version uint64
	expires time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	seq     uint64
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(HashID(id))
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.blob...), nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(HashID(id), blob)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, HashID(id))
	return nil
}

// Update runs fn without holding the lock and commits only if no other
// writer touched the session in between.
func (m *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) error {
	key := HashID(id)

	m.mu.Lock()
	e, ok := m.lookup(key)
	var current []byte
	if ok {
		current = append([]byte(nil), e.blob...)
	}
	m.mu.Unlock()

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	latest, _ := m.lookup(key)
	if latest.version != e.version {
		return ErrConflict
	}
	m.store(key, next)
	return nil
}

func (m *MemoryStore) lookup(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) store(key string, blob []byte) {
	m.seq++
	m.entries[key] = memEntry{
		blob:    append([]byte(nil), blob...),
		version: m.seq,
		expires: m.now().Add(m.ttl),
	}
}
