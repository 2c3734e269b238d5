package executor

import (
	"testing"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

func newTestScheduler(t *testing.T, kind model.SchedulerKind, execs ...time.Duration) (scheduler.Scheduler, []*job.Job) {
	t.Helper()
	sched, err := scheduler.New(kind, scheduler.DefaultOptions())
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	clk := clock.NewManual(time.Unix(0, 0))
	seq := job.NewSequence(1)
	jobs := make([]*job.Job, len(execs))
	for i, e := range execs {
		jobs[i] = seq.New(e, 0, clk)
		sched.Enqueue(jobs[i])
	}
	return sched, jobs
}

// tick advances the scheduler and then the unit, as the orchestrator does.
func tick(sched scheduler.Scheduler, u Unit, d time.Duration) {
	sched.Tick(d)
	u.Tick(d)
}

func TestNew(t *testing.T) {
	sched, _ := newTestScheduler(t, model.SchedulerFCFS)

	u, err := New(model.ConsumerSingle, sched, Options{})
	if err != nil || u.Kind() != model.ConsumerSingle || u.Cores() != 1 {
		t.Fatalf("New(single) = %v, %v", u, err)
	}
	u, err = New(model.ConsumerMulti, sched, Options{Cores: 3})
	if err != nil || u.Kind() != model.ConsumerMulti || u.Cores() != 3 {
		t.Fatalf("New(multi) = %v, %v", u, err)
	}
	if _, err := New(model.ConsumerMulti, sched, Options{Cores: 0}); err == nil {
		t.Error("multi with zero cores should fail")
	}
	if _, err := New("gpu", sched, Options{}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestSingle_CarriesLeftoverBudget(t *testing.T) {
	sched, jobs := newTestScheduler(t, model.SchedulerFCFS, time.Second, 2*time.Second, 3*time.Second)
	u := NewSingle(sched, Options{})

	tick(sched, u, 2*time.Second)

	if jobs[0].Status() != job.StatusFinished {
		t.Error("job 1 should have finished")
	}
	if got := jobs[1].TimeLeft(); got != time.Second {
		t.Errorf("job 2 TimeLeft = %v, want 1s", got)
	}
	if got := jobs[2].TimeLeft(); got != 3*time.Second {
		t.Errorf("job 3 should not have run, TimeLeft = %v", got)
	}
}

func TestSingle_IdleWhenNothingScheduled(t *testing.T) {
	sched, _ := newTestScheduler(t, model.SchedulerFCFS)
	u := NewSingle(sched, Options{})
	tick(sched, u, time.Second) // must return without spinning
}

func TestSingle_ZeroLengthJobs(t *testing.T) {
	sched, jobs := newTestScheduler(t, model.SchedulerFCFS, 0, 0, time.Second)
	u := NewSingle(sched, Options{})

	tick(sched, u, 500*time.Millisecond)

	for i, j := range jobs[:2] {
		if j.Status() != job.StatusFinished {
			t.Errorf("zero-length job %d not finished", i+1)
		}
	}
	if got := jobs[2].TimeLeft(); got != 500*time.Millisecond {
		t.Errorf("job 3 TimeLeft = %v, want 500ms", got)
	}
}

func TestMulti_NoDoubleDispatch(t *testing.T) {
	for _, kind := range model.SchedulerKinds() {
		t.Run(string(kind), func(t *testing.T) {
			sched, jobs := newTestScheduler(t, kind, 5*time.Second, 5*time.Second, 5*time.Second)
			u := NewMulti(sched, Options{Cores: 2})

			tick(sched, u, time.Second)

			ran := 0
			for _, j := range jobs {
				switch j.TimeLeft() {
				case 4 * time.Second:
					ran++
				case 5 * time.Second:
				default:
					t.Errorf("job %d TimeLeft = %v, want 4s or 5s", j.ID(), j.TimeLeft())
				}
			}
			if ran != 2 {
				t.Errorf("%d jobs ran, want 2", ran)
			}
		})
	}
}

func TestMulti_IdleCores(t *testing.T) {
	sched, jobs := newTestScheduler(t, model.SchedulerRoundRobin, 10*time.Second)
	u := NewMulti(sched, Options{Cores: 4})

	tick(sched, u, time.Second)

	if got := jobs[0].TimeLeft(); got != 9*time.Second {
		t.Errorf("TimeLeft = %v, want 9s (one core busy, three idle)", got)
	}
}

func TestMulti_DrainsQueue(t *testing.T) {
	sched, jobs := newTestScheduler(t, model.SchedulerSJN,
		3*time.Second, time.Second, 2*time.Second, 4*time.Second)
	u := NewMulti(sched, Options{Cores: 2})

	for i := 0; i < 10 && sched.Pending() > 0; i++ {
		tick(sched, u, time.Second)
	}
	sched.Tick(0)
	if sched.Pending() != 0 {
		t.Fatalf("pending = %d after draining", sched.Pending())
	}
	for _, j := range jobs {
		if j.Status() != job.StatusFinished {
			t.Errorf("job %d not finished", j.ID())
		}
	}
}

func TestSingle_LegacyOverrun(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		sched, jobs := newTestScheduler(t, model.SchedulerFCFS, time.Second, 5*time.Second)
		u := NewSingle(sched, Options{LegacyOverrun: legacy})

		tick(sched, u, 3*time.Second)

		if jobs[0].Status() != job.StatusFinished {
			t.Errorf("legacy=%v: job 1 not finished", legacy)
		}
		if got := jobs[1].TimeLeft(); got != 3*time.Second {
			t.Errorf("legacy=%v: job 2 TimeLeft = %v, want 3s", legacy, got)
		}
	}
}
