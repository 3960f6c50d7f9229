package cache

import (
	"container/list"
	"sync"
	"time"
)

// Snapshot is the last successfully served body for one request shape,
// retained so a total aggregation failure can be answered with slightly
// stale data instead of an error.
type Snapshot struct {
	Body    []byte
	ETag    string
	SavedAt time.Time
}

// SnapshotStore keeps one snapshot per canonicalized path+query, bounded to
// maxEntries with least-recently-used eviction. The key space is
// client-controlled (every query-string permutation is its own slot), so the
// store must not grow with every novel request shape a client invents.
type SnapshotStore struct {
	mu    sync.Mutex
	max   int
	snaps map[string]*list.Element
	order *list.List // front = most recently used
}

type snapshotEntry struct {
	key  string
	snap Snapshot
}

// NewSnapshotStore creates a snapshot store holding at most maxEntries
// request shapes.
func NewSnapshotStore(maxEntries int) *SnapshotStore {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &SnapshotStore{
		max:   maxEntries,
		snaps: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Save retains body and etag as the last known good response for key,
// evicting the least-recently-used entry when the store is full.
func (s *SnapshotStore) Save(key string, body []byte, etag string) {
	// Copy: callers reuse response buffers.
	b := make([]byte, len(body))
	copy(b, body)
	snap := Snapshot{Body: b, ETag: etag, SavedAt: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.snaps[key]; ok {
		el.Value.(*snapshotEntry).snap = snap
		s.order.MoveToFront(el)
		return
	}
	if s.order.Len() >= s.max {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.snaps, oldest.Value.(*snapshotEntry).key)
	}
	s.snaps[key] = s.order.PushFront(&snapshotEntry{key: key, snap: snap})
}

// Get returns the snapshot for key if one is retained, marking it recently
// used.
func (s *SnapshotStore) Get(key string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.snaps[key]
	if !ok {
		return Snapshot{}, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*snapshotEntry).snap, true
}

// Len reports how many request shapes are currently retained.
func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
