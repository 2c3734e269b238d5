package producer

import (
	"math/rand/v2"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// Random generates jobs with uniformly distributed execute times, released
// one second apart.
type Random struct {
	base
	count    int
	min, max time.Duration
	rng      *rand.Rand
}

// NewRandom creates a random producer.
func NewRandom(sched scheduler.Scheduler, clk clock.Clock, opts Options) *Random {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	lo, hi := opts.MinTime, opts.MaxTime
	if hi < lo {
		lo, hi = hi, lo
	}
	return &Random{
		base:  newBase(model.ProducerRandom, sched, clk, opts.Logger),
		count: opts.Count,
		min:   lo,
		max:   hi,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Produce creates count jobs with delays 1s, 2s, 3s, ...
func (p *Random) Produce() error {
	var delay time.Duration
	for i := 0; i < p.count; i++ {
		exec := p.min + time.Duration(p.rng.Float64()*float64(p.max-p.min))
		delay += time.Second
		p.create(exec, delay)
	}
	p.logger.Info("jobs generated", "count", p.count, "min", p.min, "max", p.max)
	return nil
}
