package ds

import "sync"

type void struct{}

var empty void

// SyncedSet is a mutex guarded set.
type SyncedSet[T comparable] struct {
	data map[T]void
	lock sync.RWMutex
}

func NewSyncedSet[T comparable]() *SyncedSet[T] {
	return &SyncedSet[T]{data: make(map[T]void)}
}

// TryAdd adds item and reports whether it was absent before.
func (s *SyncedSet[T]) TryAdd(item T) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, exists := s.data[item]; exists {
		return false
	}
	s.data[item] = empty
	return true
}

func (s *SyncedSet[T]) Remove(item T) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.data, item)
}

func (s *SyncedSet[T]) Contains(item T) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, exists := s.data[item]
	return exists
}

func (s *SyncedSet[T]) Size() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data)
}
