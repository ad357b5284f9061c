package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value   []byte
	expires time.Time
	added   time.Time
	tags    []string
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expires.IsZero() && now.After(m.expires)
}

// MemoryProvider keeps entries in process memory. When MaxSize is reached
// the oldest entry is evicted.
type MemoryProvider struct {
	mu      sync.Mutex
	items   map[string]*memoryItem
	tags    map[string]map[string]struct{}
	options *Options
	now     func() time.Time
}

// NewMemoryProvider creates a new in-memory cache provider.
func NewMemoryProvider(opts *Options) *MemoryProvider {
	if opts == nil {
		opts = &Options{DefaultTTL: 5 * time.Minute, MaxSize: 10000}
	}
	return &MemoryProvider{
		items:   make(map[string]*memoryItem),
		tags:    make(map[string]map[string]struct{}),
		options: opts,
		now:     time.Now,
	}
}

func (m *MemoryProvider) Name() string { return "memory" }

func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if item.expired(m.now()) {
		m.remove(key)
		return nil, false, nil
	}
	return item.value, true, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	if m.options.MaxSize > 0 && len(m.items) >= m.options.MaxSize {
		m.evict()
	}
	now := m.now()
	item := &memoryItem{value: value, added: now, tags: tags}
	if ttl = m.options.ttl(ttl); ttl > 0 {
		item.expires = now.Add(ttl)
	}
	m.items[key] = item
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	reportSize(m, len(m.items))
	return nil
}

func (m *MemoryProvider) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	return nil
}

func (m *MemoryProvider) DeleteByTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.tags[tag] {
		m.remove(key)
	}
	delete(m.tags, tag)
	reportSize(m, len(m.items))
	return nil
}

func (m *MemoryProvider) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*memoryItem)
	m.tags = make(map[string]map[string]struct{})
	reportSize(m, 0)
	return nil
}

func (m *MemoryProvider) Close() error { return nil }

// Len returns the number of stored entries, expired ones included.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// remove requires m.mu.
func (m *MemoryProvider) remove(key string) {
	item, ok := m.items[key]
	if !ok {
		return
	}
	delete(m.items, key)
	for _, tag := range item.tags {
		if keys, ok := m.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tags, tag)
			}
		}
	}
}

// evict drops expired entries, or the oldest one when none expired.
// Requires m.mu.
func (m *MemoryProvider) evict() {
	now := m.now()
	var oldest string
	var oldestAt time.Time
	dropped := false
	for key, item := range m.items {
		if item.expired(now) {
			m.remove(key)
			dropped = true
			continue
		}
		if oldest == "" || item.added.Before(oldestAt) {
			oldest, oldestAt = key, item.added
		}
	}
	if !dropped && oldest != "" {
		m.remove(oldest)
	}
}
