// Package history keeps a session's assessments in memory, most recent first,
// together with the result currently on display.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/riskassess/backend/internal/prediction"
)

var (
	ErrNotFound      = errors.New("prediction not found in history")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

const (
	MinRating = 1
	MaxRating = 5
)

type Option func(*Store)

// WithCapacity bounds the history to n entries, dropping the oldest.
// Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is safe for concurrent use. Entries are owned by the store; callers
// always receive copies.
type Store struct {
	mu       sync.RWMutex
	entries  []*prediction.Result
	current  *prediction.Result
	capacity int
	now      func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: []*prediction.Result{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record prepends result and makes it the current result.
func (s *Store) Record(result *prediction.Result) {
	entry := *result

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]*prediction.Result{&entry}, s.entries...)
	if s.capacity > 0 && len(s.entries) > s.capacity {
		for i := s.capacity; i < len(s.entries); i++ {
			s.entries[i] = nil
		}
		s.entries = s.entries[:s.capacity]
	}
	s.current = &entry
}

// AttachFeedback replaces the feedback of the entry with the given id. The
// current result shares storage with its history entry and sees the change.
func (s *Store) AttachFeedback(id string, rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.find(id)
	if entry == nil {
		return ErrNotFound
	}

	entry.Feedback = &prediction.Feedback{
		Rating:    rating,
		Comment:   comment,
		Timestamp: s.now(),
	}
	return nil
}

// List returns a copy of the history, most recent first.
func (s *Store) List() []prediction.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]prediction.Result, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

func (s *Store) Get(id string) (prediction.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e := s.find(id); e != nil {
		return *e, true
	}
	return prediction.Result{}, false
}

func (s *Store) Current() (prediction.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return prediction.Result{}, false
	}
	return *s.current, true
}

// Select puts a history entry back on display.
func (s *Store) Select(id string) (prediction.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return prediction.Result{}, ErrNotFound
	}
	s.current = e
	return *e, nil
}

// ClearCurrent empties the display slot without touching history.
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) find(id string) *prediction.Result {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}
