package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// maxMemoryEntries caps the in-memory store. Above the cap the oldest
// entries are evicted after expired ones are swept.
const maxMemoryEntries = 4096

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when Redis is not configured.
// Expiry is lazy: entries are dropped on lookup or when the cap forces a
// sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryStore creates an in-memory cache with the given entry TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the entry for key, bumping its hit statistics. Expired entries
// are removed and reported as a miss.
func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stored, ok := m.entries[key]
	if !ok || now.After(stored.expiresAt) {
		if ok {
			delete(m.entries, key)
		}
		m.misses.Add(1)
		return nil, nil
	}

	stored.entry.HitCount++
	stored.entry.LastAccessed = now
	m.entries[key] = stored
	m.hits.Add(1)

	out := stored.entry
	return &out, nil
}

// Set stores the entry under key with the configured TTL.
func (m *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastAccessed.IsZero() {
		entry.LastAccessed = now
	}

	if len(m.entries) >= maxMemoryEntries {
		m.evict(now)
	}

	m.entries[key] = memoryEntry{entry: entry, expiresAt: now.Add(m.ttl)}
	return nil
}

// evict drops expired entries, then the least recently accessed entry if the
// store is still full. Caller holds the lock.
func (m *MemoryStore) evict(now time.Time) {
	for key, stored := range m.entries {
		if now.After(stored.expiresAt) {
			delete(m.entries, key)
		}
	}
	if len(m.entries) < maxMemoryEntries {
		return
	}

	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, stored := range m.entries {
		if oldestKey == "" || stored.entry.LastAccessed.Before(oldestAt) {
			oldestKey = key
			oldestAt = stored.entry.LastAccessed
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// Stats returns process-local hit and miss counts.
func (m *MemoryStore) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close releases the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
