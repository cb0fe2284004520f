package pipeline

import (
	"sync"
	"time"

	"github.com/abworrall/scalecam/pkg/wb"
)

// Slot is a single-slot, latest-frame-wins handoff from the processing
// task to whoever displays the frames. The writer never waits on the
// reader; if the reader falls behind, unread results are simply
// overwritten (and counted).
type Slot struct {
	mu        sync.RWMutex
	latest    wb.Result
	published uint64 // also serves as the sequence number of latest
	readUpTo  uint64
	dropped   uint64
	lastPut   time.Time
	started   time.Time
}

func NewSlot() *Slot { return &Slot{} }

func (s *Slot) Put(r wb.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.published > 0 && s.readUpTo < s.published {
		s.dropped++
	}
	s.latest = r
	s.published++
	s.lastPut = time.Now()
	if s.started.IsZero() {
		s.started = s.lastPut
	}
}

// Latest returns the most recent result, and false if nothing has been
// published yet.
func (s *Slot) Latest() (wb.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == 0 {
		return wb.Result{}, false
	}
	s.readUpTo = s.published
	return s.latest, true
}

// ReadIfNew returns the latest result only if it is newer than lastSeq. The
// returned sequence number should be passed back in on the next call.
func (s *Slot) ReadIfNew(lastSeq uint64) (wb.Result, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == 0 || s.published <= lastSeq {
		return wb.Result{}, lastSeq, false
	}
	s.readUpTo = s.published
	return s.latest, s.published, true
}

func (s *Slot) Published() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published
}

// Dropped counts results that were overwritten before anyone read them.
func (s *Slot) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

func (s *Slot) LastPut() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPut
}

// Rate is the average publish rate, in frames per second.
func (s *Slot) Rate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.published < 2 {
		return 0
	}
	elapsed := s.lastPut.Sub(s.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.published-1) / elapsed
}

func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = wb.Result{}
	s.published, s.readUpTo, s.dropped = 0, 0, 0
	s.lastPut, s.started = time.Time{}, time.Time{}
}
