// Package session keeps per-caller conversation history in memory.
package session

import (
	"sync"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/oracle"
)

type entry struct {
	history []oracle.Message
	touched time.Time
}

// Store maps a caller key, such as a phone number, to its history. Entries
// idle longer than the timeout are treated as absent.
type Store struct {
	mu      sync.Mutex
	clock   clock.Clock
	timeout time.Duration
	entries map[string]*entry
	turns   map[string]*turnLock
}

// turnLock serializes Update calls for one key.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(c clock.Clock, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = constants.DefaultSessionTimeout
	}
	return &Store{clock: c, timeout: timeout, entries: map[string]*entry{}, turns: map[string]*turnLock{}}
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return now.Sub(e.touched) > s.timeout
}

// Get returns a copy of the caller's history.
func (s *Store) Get(key string) []oracle.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.expired(e, s.clock.Now()) {
		delete(s.entries, key)
		return nil
	}
	return append([]oracle.Message(nil), e.history...)
}

func (s *Store) Save(key string, history []oracle.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{history: append([]oracle.Message(nil), history...), touched: s.clock.Now()}
}

// Update runs fn on the caller's history and saves the result. Calls for
// the same key run one at a time; other keys are not blocked while fn runs.
func (s *Store) Update(key string, fn func(history []oracle.Message) []oracle.Message) {
	unlock := s.lockTurn(key)
	defer unlock()
	s.Save(key, fn(s.Get(key)))
}

func (s *Store) lockTurn(key string) func() {
	s.mu.Lock()
	l, ok := s.turns[key]
	if !ok {
		l = &turnLock{}
		s.turns[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.turns, key)
		}
		s.mu.Unlock()
	}
}

func (s *Store) Reset(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops expired entries and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	n := 0
	for k, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
