package service

import (
	"sosibot/internal/core/domain"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDedupCapacity = 2000
	DefaultDedupRetain   = 1000
)

// DedupStore remembers recently seen message keys. Once more than capacity keys are held, it keeps only the
// retain most recently inserted ones.
type DedupStore struct {
	seen     map[domain.MessageKey]struct{}
	order    []domain.MessageKey
	capacity int
	retain   int
	mutex    sync.Mutex
}

func NewDedupStore(capacity, retain int) *DedupStore {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}

	if retain <= 0 || retain > capacity {
		retain = min(DefaultDedupRetain, capacity)
	}

	return &DedupStore{
		seen:     make(map[domain.MessageKey]struct{}, capacity+1),
		capacity: capacity,
		retain:   retain,
	}
}

// IsProcessed reports whether key was seen before and registers it otherwise. Incomplete keys are never
// registered and always report false.
func (s *DedupStore) IsProcessed(key domain.MessageKey) bool {
	if !key.Valid() {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}

	s.seen[key] = struct{}{}
	s.order = append(s.order, key)

	if len(s.order) > s.capacity {
		s.compact()
	}

	return false
}

func (s *DedupStore) compact() {
	keep := make([]domain.MessageKey, s.retain)
	copy(keep, s.order[len(s.order)-s.retain:])

	s.seen = make(map[domain.MessageKey]struct{}, s.capacity+1)
	for _, k := range keep {
		s.seen[k] = struct{}{}
	}
	s.order = keep

	log.Debug().Int("retained", s.retain).Msg("compacted dedup store")
}

// Len returns the number of keys currently held.
func (s *DedupStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.order)
}
