// Package executor runs scheduled jobs. An execution unit pulls work from a
// scheduler each tick and advances the jobs it is handed by simulated time.
package executor

import (
	"time"

	"github.com/me/schedsim/pkg/model"
)

// Unit is an execution unit driven by the orchestrator.
type Unit interface {
	// Kind returns the consumer identifier.
	Kind() model.ConsumerKind

	// Cores returns the number of jobs the unit can run in one tick.
	Cores() int

	// Tick spends up to delta of processing time on scheduled jobs.
	Tick(delta time.Duration)
}
