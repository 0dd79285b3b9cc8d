// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package throttle

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMemorySize is the number of callers a MemoryStore remembers
// if no size is given.
const DefaultMemorySize = 10000

// MemoryStore is an in-process Store holding a fixed number of
// counters.  When it is full, the least recently used counter is
// forgotten.  It can be safely accessed from multiple goroutines.
type MemoryStore struct {
	size      int
	lock      sync.Mutex
	evictList *list.List
	index     map[string]*list.Element
}

type entry struct {
	key     string
	counter Counter
}

// NewMemoryStore creates a store for up to size counters.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryStore{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves a counter, marking it recently used.
func (m *MemoryStore) Get(ctx context.Context, key string) (Counter, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if element, present := m.index[key]; present {
		m.evictList.MoveToBack(element)
		return element.Value.(*entry).counter, nil
	}
	return Counter{}, nil
}

// Set stores a counter, possibly evicting another.  The counter's own
// expiry ends its window, so ttl is not used.
func (m *MemoryStore) Set(ctx context.Context, key string, c Counter, ttl time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	// Are we just updating an existing counter?
	if element, present := m.index[key]; present {
		element.Value.(*entry).counter = c
		m.evictList.MoveToBack(element)
		return nil
	}

	m.index[key] = m.evictList.PushBack(&entry{key: key, counter: c})
	for len(m.index) > m.size {
		head := m.evictList.Front()
		delete(m.index, head.Value.(*entry).key)
		m.evictList.Remove(head)
	}
	return nil
}

// Len returns the number of counters held.
func (m *MemoryStore) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.index)
}
