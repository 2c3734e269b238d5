package executor

import (
	"time"

	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// Multi fans a tick out to a fixed set of single units sharing one
// scheduler. Every unit gets the full delta, so N cores do N times the work
// of one.
type Multi struct {
	units []*Single
}

// NewMulti creates a unit with opts.Cores single units.
func NewMulti(sched scheduler.Scheduler, opts Options) *Multi {
	n := max(opts.Cores, 1)
	m := &Multi{units: make([]*Single, n)}
	logger := logging.OrDiscard(opts.Logger)
	for i := range m.units {
		o := opts
		o.Logger = logger.With("core", i)
		m.units[i] = NewSingle(sched, o)
	}
	return m
}

func (m *Multi) Kind() model.ConsumerKind { return model.ConsumerMulti }

func (m *Multi) Cores() int { return len(m.units) }

func (m *Multi) Tick(delta time.Duration) {
	for _, u := range m.units {
		u.Tick(delta)
	}
}
