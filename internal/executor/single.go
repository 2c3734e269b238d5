package executor

import (
	"log/slog"
	"time"

	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// Single runs one job at a time. Within a tick it keeps pulling jobs until
// the tick budget is spent or the scheduler has nothing eligible.
type Single struct {
	sched  scheduler.Scheduler
	legacy bool
	logger *slog.Logger
}

// NewSingle creates a single-core unit.
func NewSingle(sched scheduler.Scheduler, opts Options) *Single {
	return &Single{
		sched:  sched,
		legacy: opts.LegacyOverrun,
		logger: logging.OrDiscard(opts.Logger).With("component", "executor"),
	}
}

func (u *Single) Kind() model.ConsumerKind { return model.ConsumerSingle }

func (u *Single) Cores() int { return 1 }

func (u *Single) Tick(delta time.Duration) {
	budget := delta
	for budget > 0 {
		j := u.sched.Next()
		if j == nil {
			return
		}
		consumed := min(budget, j.TimeLeft())
		if u.legacy {
			j.RunFor(budget)
		} else {
			j.RunFor(consumed)
		}
		u.logger.Debug("job ran", "job_id", j.ID(), "ran", consumed, "left", j.TimeLeft())
		budget -= consumed
	}
}
