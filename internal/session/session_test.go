package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/oracle"
)

func TestStoreExpiry(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s := NewStore(c, 30*time.Minute)
	msgs := []oracle.Message{{Role: oracle.RoleUser, Content: "hi"}}

	s.Save("+15550001", msgs)
	s.Save("+15550002", msgs)
	if got := s.Get("+15550001"); len(got) != 1 {
		t.Fatalf("expected saved history, got %v", got)
	}

	c.Advance(29 * time.Minute)
	s.Save("+15550002", msgs)
	c.Advance(2 * time.Minute)
	if got := s.Get("+15550001"); got != nil {
		t.Errorf("expected expired history, got %v", got)
	}
	if n := s.Sweep(); n != 0 {
		t.Errorf("Get already evicted the stale entry, Sweep removed %d", n)
	}
	if s.Len() != 1 {
		t.Errorf("expected one live session, got %d", s.Len())
	}

	c.Advance(time.Hour)
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
}

func TestStoreCopies(t *testing.T) {
	s := NewStore(clock.NewFixed(time.Now()), 0)
	msgs := []oracle.Message{{Role: oracle.RoleUser, Content: "a"}}
	s.Save("k", msgs)
	msgs[0].Content = "mutated"
	got := s.Get("k")
	got[0].Content = "also mutated"
	if s.Get("k")[0].Content != "a" {
		t.Error("store must not alias caller slices")
	}
	s.Reset("k")
	if s.Get("k") != nil {
		t.Error("expected history cleared")
	}
}

func TestStoreUpdateSerializesPerKey(t *testing.T) {
	s := NewStore(clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)), 30*time.Minute)
	const n = 20
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("+15550001", func(h []oracle.Message) []oracle.Message {
				cur := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return append(h, oracle.Message{Role: oracle.RoleUser, Content: "turn"})
			})
		}()
	}
	wg.Wait()

	if got := len(s.Get("+15550001")); got != n {
		t.Errorf("expected %d turns kept, got %d", n, got)
	}
	if peak != 1 {
		t.Errorf("updates for one key overlapped: peak %d", peak)
	}
	if len(s.turns) != 0 {
		t.Errorf("turn locks leaked: %d", len(s.turns))
	}
}

func TestStoreUpdateOtherKeysNotBlocked(t *testing.T) {
	s := NewStore(clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)), 30*time.Minute)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Update("a", func(h []oracle.Message) []oracle.Message {
			s.Update("b", func(h []oracle.Message) []oracle.Message {
				return append(h, oracle.Message{Role: oracle.RoleUser, Content: "b"})
			})
			return append(h, oracle.Message{Role: oracle.RoleUser, Content: "a"})
		})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update for another key blocked")
	}
	if len(s.Get("a")) != 1 || len(s.Get("b")) != 1 {
		t.Errorf("unexpected histories: a=%v b=%v", s.Get("a"), s.Get("b"))
	}
}
