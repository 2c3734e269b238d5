package job

import (
	"time"

	"github.com/me/schedsim/internal/clock"
)

// Sequence hands out job ids. Each Source owns one, so ids are unique per
// simulation without process-wide state.
type Sequence struct {
	next uint64
}

// NewSequence returns a sequence whose first id is start.
func NewSequence(start uint64) *Sequence {
	return &Sequence{next: start}
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	id := s.next
	s.next++
	return id
}

// New creates a job with the next id.
func (s *Sequence) New(executeTime, delay time.Duration, clk clock.Clock) *Job {
	return New(s.Next(), executeTime, delay, clk)
}
