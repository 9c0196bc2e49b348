// Package collection implements the reconciliation pattern shared by every
// ordered child collection of a draft course: sections, section items,
// objectives and requirements. Local state is split into server-confirmed
// entries and pending (not yet persisted) entries, and every server response
// is applied through one merge function.
package collection

import (
	"errors"
	"fmt"
)

// ErrLimitReached is returned by Queue when the combined ceiling is hit.
var ErrLimitReached = errors.New("collection limit reached")

// Entry is the minimal shape the synchronizer needs from a collection member.
type Entry interface {
	EntryID() int
	EntryOrder() int
}

// Synchronizer keeps one source of truth for an ordered collection. Orders
// assigned through NextOrder are strictly increasing for the lifetime of the
// collection and never reused after a delete, so gaps are expected.
type Synchronizer[T Entry] struct {
	confirmed []T
	pending   []T
	highWater int // highest order ever observed or assigned
	maxTotal  int // 0 means uncapped
	guard     func(T) error
}

// Option configures a Synchronizer.
type Option[T Entry] func(*Synchronizer[T])

// WithLimit caps the combined count of confirmed and pending entries.
func WithLimit[T Entry](n int) Option[T] {
	return func(s *Synchronizer[T]) { s.maxTotal = n }
}

// WithDeleteGuard installs a client-side check run before any delete call is
// issued. A non-nil return blocks the delete with no network traffic.
func WithDeleteGuard[T Entry](guard func(T) error) Option[T] {
	return func(s *Synchronizer[T]) { s.guard = guard }
}

// New creates an empty synchronizer.
func New[T Entry](opts ...Option[T]) *Synchronizer[T] {
	s := &Synchronizer[T]{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirmed returns the server-confirmed entries.
func (s *Synchronizer[T]) Confirmed() []T { return s.confirmed }

// Pending returns the locally queued, not yet persisted entries.
func (s *Synchronizer[T]) Pending() []T { return s.pending }

// Len returns the combined confirmed + pending count.
func (s *Synchronizer[T]) Len() int { return len(s.confirmed) + len(s.pending) }

// NextOrder returns the order the next appended entry must carry: one past
// the highest order the collection has ever held, regardless of deletions.
func (s *Synchronizer[T]) NextOrder() int {
	return s.highWater + 1
}

// Queue adds a pending entry, enforcing the combined ceiling. The entry's
// order should come from NextOrder; the high-water mark advances with it.
func (s *Synchronizer[T]) Queue(entry T) error {
	if s.maxTotal > 0 && s.Len() >= s.maxTotal {
		return fmt.Errorf("%w: at most %d entries", ErrLimitReached, s.maxTotal)
	}
	if o := entry.EntryOrder(); o > s.highWater {
		s.highWater = o
	}
	s.pending = append(s.pending, entry)
	return nil
}

// DropPending removes one queued entry by position. No network call is
// involved; the entry was never persisted.
func (s *Synchronizer[T]) DropPending(index int) error {
	if index < 0 || index >= len(s.pending) {
		return fmt.Errorf("no pending entry at index %d", index)
	}
	s.pending = append(s.pending[:index], s.pending[index+1:]...)
	return nil
}

// Merge applies a server response as the authoritative confirmed list and
// clears the pending queue. The high-water mark only ever moves up, so an
// append after a delete still gets a fresh order.
func (s *Synchronizer[T]) Merge(serverList []T) {
	s.confirmed = serverList
	s.pending = nil
	for _, e := range serverList {
		if o := e.EntryOrder(); o > s.highWater {
			s.highWater = o
		}
	}
}

// Confirm appends one server-created entry to the confirmed list, used for
// individually created entries (section items) rather than batch responses.
func (s *Synchronizer[T]) Confirm(entry T) {
	if o := entry.EntryOrder(); o > s.highWater {
		s.highWater = o
	}
	s.confirmed = append(s.confirmed, entry)
}

// Find returns the confirmed entry with the given id.
func (s *Synchronizer[T]) Find(id int) (T, bool) {
	for _, e := range s.confirmed {
		if e.EntryID() == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}

// Update mutates the confirmed entry with the given id in place. This is the
// one sanctioned way to edit a confirmed entry, so partial-field patches land
// on the same copy every reader sees.
func (s *Synchronizer[T]) Update(id int, fn func(*T)) error {
	for i := range s.confirmed {
		if s.confirmed[i].EntryID() == id {
			fn(&s.confirmed[i])
			if o := s.confirmed[i].EntryOrder(); o > s.highWater {
				s.highWater = o
			}
			return nil
		}
	}
	return fmt.Errorf("no entry with id %d", id)
}

// Delete runs the guard, then the caller's delete call, then merges the
// server's post-delete list. A guard rejection or an unknown id returns
// before any network call is made.
func (s *Synchronizer[T]) Delete(id int, call func() ([]T, error)) error {
	entry, ok := s.Find(id)
	if !ok {
		return fmt.Errorf("no entry with id %d", id)
	}
	if s.guard != nil {
		if err := s.guard(entry); err != nil {
			return err
		}
	}
	serverList, err := call()
	if err != nil {
		return err
	}
	s.Merge(serverList)
	return nil
}
