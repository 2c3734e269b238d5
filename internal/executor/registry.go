package executor

import (
	"fmt"
	"log/slog"

	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// Options configures an execution unit.
type Options struct {
	// Cores is the number of single units a multi unit fans out to.
	Cores int

	// LegacyOverrun advances each job by the whole remaining budget instead
	// of by what the job could actually consume.
	LegacyOverrun bool

	Logger *slog.Logger
}

// New returns the execution unit registered for kind, pulling from sched.
func New(kind model.ConsumerKind, sched scheduler.Scheduler, opts Options) (Unit, error) {
	switch kind {
	case model.ConsumerSingle:
		return NewSingle(sched, opts), nil
	case model.ConsumerMulti:
		if opts.Cores < 1 {
			return nil, fmt.Errorf("multi consumer requires at least 1 core, got %d", opts.Cores)
		}
		return NewMulti(sched, opts), nil
	}
	return nil, fmt.Errorf("no consumer registered for kind %q", kind)
}
