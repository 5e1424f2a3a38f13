// Package registry provides a slot store whose indexes stay stable for the
// lifetime of an item, so they can be embedded in batch records and looked up
// again after a computation round-trip.
package registry

import "fmt"

const none = -1

type slot[T any] struct {
	item T
	// next links free slots; meaningful only while used is false.
	next int
	used bool
}

// Store is an append/remove collection with recycled slot indexes.
// Freed slots are reused most-recent-first before the backing array grows.
// Not safe for concurrent use.
type Store[T any] struct {
	slots  []slot[T]
	free   int
	count  int
	locked bool

	// IgnoreErrors turns structural misuse (mutating while locked, removing a
	// non-member) into silent no-ops.
	IgnoreErrors bool
}

func New[T any](capacity int) *Store[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Store[T]{
		slots: make([]slot[T], 0, capacity),
		free:  none,
	}
}

// Add stores item and returns its index.
func (s *Store[T]) Add(item T) (int, error) {
	if s.locked {
		return none, s.misuse(ErrLocked)
	}

	if s.free != none {
		idx := s.free
		sl := &s.slots[idx]
		s.free = sl.next
		sl.item = item
		sl.next = none
		sl.used = true
		s.count++
		return idx, nil
	}

	s.slots = append(s.slots, slot[T]{item: item, next: none, used: true})
	s.count++
	return len(s.slots) - 1, nil
}

// Remove frees the slot at index and returns the item it held.
func (s *Store[T]) Remove(index int) (T, error) {
	var zero T
	if s.locked {
		return zero, s.misuse(ErrLocked)
	}
	if !s.Has(index) {
		return zero, s.misuse(fmt.Errorf("remove %d: %w", index, ErrNotMember))
	}

	sl := &s.slots[index]
	item := sl.item
	sl.item = zero
	sl.used = false
	sl.next = s.free
	s.free = index
	s.count--
	return item, nil
}

// Has reports whether index refers to an occupied slot.
func (s *Store[T]) Has(index int) bool {
	return index >= 0 && index < len(s.slots) && s.slots[index].used
}

// Get returns the item at index, or false when the slot is free.
func (s *Store[T]) Get(index int) (T, bool) {
	if !s.Has(index) {
		var zero T
		return zero, false
	}
	return s.slots[index].item, true
}

// Ptr returns a pointer into the slot at index. The pointer is invalidated by
// the next Add that grows the store.
func (s *Store[T]) Ptr(index int) *T {
	if !s.Has(index) {
		return nil
	}
	return &s.slots[index].item
}

// Len is the number of occupied slots.
func (s *Store[T]) Len() int { return s.count }

// Cap is the number of slots ever allocated; every valid index is below it.
func (s *Store[T]) Cap() int { return len(s.slots) }

// Each calls fn for every occupied slot in index order until fn returns false.
func (s *Store[T]) Each(fn func(index int, item T) bool) {
	for i := range s.slots {
		if !s.slots[i].used {
			continue
		}
		if !fn(i, s.slots[i].item) {
			return
		}
	}
}

// Lock rejects further Add/Remove calls until Unlock.
func (s *Store[T]) Lock()        { s.locked = true }
func (s *Store[T]) Unlock()      { s.locked = false }
func (s *Store[T]) Locked() bool { return s.locked }

// Clear drops every item and forgets the free list. Capacity is kept.
func (s *Store[T]) Clear() {
	clear(s.slots)
	s.slots = s.slots[:0]
	s.free = none
	s.count = 0
}

func (s *Store[T]) misuse(err error) error {
	if s.IgnoreErrors {
		return nil
	}
	return err
}
