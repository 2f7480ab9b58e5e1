package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// lruEntry is one L1 record. expiresAt is fixed at write time and checked on
// every read.
type lruEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// LRU is the bounded in-process tier. All operations are O(1) and guarded by
// a single mutex; eviction drops the least-recently-used entry.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	now      func() time.Time
}

// NewLRU returns an LRU bounded at capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get returns the value for key and refreshes its recency. Expired entries
// are removed and reported as misses.
func (l *LRU) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.items[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*lruEntry)
	if l.now().After(entry.expiresAt) {
		l.order.Remove(el)
		delete(l.items, key)
		return "", false
	}
	l.order.MoveToFront(el)
	return entry.value, true
}

// Set stores key with the given TTL, evicting the least-recently-used entry
// when the cache is full.
func (l *LRU) Set(key, value string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expires := l.now().Add(ttl)
	if el, ok := l.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expires
		l.order.MoveToFront(el)
		return
	}
	if l.order.Len() >= l.capacity {
		oldest := l.order.Back()
		if oldest != nil {
			l.order.Remove(oldest)
			delete(l.items, oldest.Value.(*lruEntry).key)
		}
	}
	el := l.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expires})
	l.items[key] = el
}

// Delete removes the given keys if present.
func (l *LRU) Delete(keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		if el, ok := l.items[key]; ok {
			l.order.Remove(el)
			delete(l.items, key)
		}
	}
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (l *LRU) DeletePrefix(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, el := range l.items {
		if strings.HasPrefix(key, prefix) {
			l.order.Remove(el)
			delete(l.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, counting expired ones that have
// not been read yet.
func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
