package transfer

import (
	"sync"

	"github.com/kestrel-vision/stereolink/pkg/imageset"
)

// frameSlot is the single-capacity latest-wins buffer between the receive
// goroutine and callers. A new arrival replaces an unclaimed previous one;
// a claim removes the value so no two callers ever return the same arrival.
//
// The producer never blocks. Waiting consumers are woken through the
// 1-buffered ready channel, which keeps the wait select-able against a
// timeout and client shutdown.
type frameSlot struct {
	mu    sync.Mutex
	set   *imageset.ImageSet
	drops uint64

	ready chan struct{}
}

func newFrameSlot() *frameSlot {
	return &frameSlot{ready: make(chan struct{}, 1)}
}

// put stores a new set, replacing any unclaimed one, and wakes one waiter.
func (s *frameSlot) put(set *imageset.ImageSet) {
	s.mu.Lock()
	if s.set != nil {
		s.drops++
	}
	s.set = set
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default: // a wakeup is already pending
	}
}

// take claims the current set, if any, and clears the slot.
func (s *frameSlot) take() *imageset.ImageSet {
	s.mu.Lock()
	set := s.set
	s.set = nil
	s.mu.Unlock()
	return set
}

// dropCount returns how many arrivals were overwritten unclaimed.
func (s *frameSlot) dropCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}
