package job

import (
	"testing"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/event"
)

func newTestJob(t *testing.T, exec time.Duration) (*Job, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1000, 0))
	return New(1, exec, 0, clk), clk
}

func TestNew_Defaults(t *testing.T) {
	j, clk := newTestJob(t, 5*time.Second)

	if j.TimeLeft() != 5*time.Second {
		t.Errorf("TimeLeft = %v, want 5s", j.TimeLeft())
	}
	if j.Status() != StatusRunning {
		t.Errorf("Status = %s, want RUNNING", j.Status())
	}
	if !j.Created().Equal(clk.Now()) {
		t.Errorf("Created = %v, want %v", j.Created(), clk.Now())
	}
	if _, ok := j.Arrived(); ok {
		t.Error("Arrived should be unset")
	}
	if _, ok := j.WaitTime(); ok {
		t.Error("WaitTime should be unavailable before start")
	}
	if _, ok := j.QueueTime(); ok {
		t.Error("QueueTime should be unavailable before arrival")
	}
	if j.String() != "Job #1" {
		t.Errorf("String = %q", j.String())
	}
}

func TestRunFor_TimeLeftNonIncreasing(t *testing.T) {
	j, _ := newTestJob(t, 3*time.Second)
	j.MarkArrival()

	prev := j.TimeLeft()
	var consumed time.Duration
	for _, d := range []time.Duration{time.Second, 0, 500 * time.Millisecond, time.Second, time.Second} {
		j.RunFor(d)
		consumed += d
		if j.TimeLeft() > prev {
			t.Fatalf("TimeLeft increased: %v -> %v", prev, j.TimeLeft())
		}
		if j.TimeLeft() < 0 {
			t.Fatalf("TimeLeft negative: %v", j.TimeLeft())
		}
		_, finished := j.Finished()
		if finished != (consumed >= 3*time.Second) {
			t.Fatalf("after %v consumed: finished=%v", consumed, finished)
		}
		prev = j.TimeLeft()
	}
	if j.Status() != StatusFinished {
		t.Errorf("Status = %s, want FINISHED", j.Status())
	}
}

func TestRunFor_OverrunClampsTimeLeft(t *testing.T) {
	j, _ := newTestJob(t, time.Second)
	j.RunFor(5 * time.Second)
	if j.TimeLeft() != 0 {
		t.Errorf("TimeLeft = %v, want 0", j.TimeLeft())
	}
	if j.Status() != StatusFinished {
		t.Error("job should be finished")
	}
}

func TestRunFor_ZeroExecuteTimeFinishesOnFirstRun(t *testing.T) {
	j, _ := newTestJob(t, 0)
	j.RunFor(0)
	if j.Status() != StatusFinished {
		t.Error("zero-length job should finish on first run")
	}
}

func TestTransitions_FireOnce(t *testing.T) {
	j, clk := newTestJob(t, 2*time.Second)
	counts := map[string]int{}
	j.On(EventArrived, func(*Job) { counts["arrived"]++ })
	j.On(EventStarted, func(*Job) { counts["started"]++ })
	j.On(EventFinished, func(*Job) { counts["finished"]++ })

	j.MarkArrival()
	first, _ := j.Arrived()
	clk.Advance(time.Second)
	j.MarkArrival()
	again, _ := j.Arrived()
	if !first.Equal(again) {
		t.Errorf("arrival time changed on repeated MarkArrival")
	}

	j.RunFor(time.Second)
	j.MarkServiceStart()
	j.RunFor(time.Second)
	j.MarkFinish()
	j.RunFor(time.Second)

	for _, name := range []string{"arrived", "started", "finished"} {
		if counts[name] != 1 {
			t.Errorf("%s fired %d times, want 1", name, counts[name])
		}
	}
}

func TestTimestamps_OrderedAndDerived(t *testing.T) {
	j, clk := newTestJob(t, 2*time.Second)

	clk.Advance(time.Second)
	j.MarkArrival()
	clk.Advance(3 * time.Second)
	j.RunFor(time.Second)
	clk.Advance(2 * time.Second)
	if q, _ := j.QueueTime(); q != 5*time.Second {
		t.Errorf("QueueTime while running = %v, want 5s", q)
	}
	j.RunFor(time.Second)
	clk.Advance(10 * time.Second)

	arrived, _ := j.Arrived()
	started, _ := j.ServiceStart()
	finished, _ := j.Finished()
	if arrived.Before(j.Created()) || started.Before(arrived) || finished.Before(started) {
		t.Fatalf("timestamps out of order: %v %v %v %v", j.Created(), arrived, started, finished)
	}

	checks := []struct {
		name string
		fn   func() (time.Duration, bool)
		want time.Duration
	}{
		{"ServiceTime", j.ServiceTime, 4 * time.Second},
		{"WaitTime", j.WaitTime, 3 * time.Second},
		{"ProcessTime", j.ProcessTime, 2 * time.Second},
		{"TotalTime", j.TotalTime, 5 * time.Second},
		{"QueueTime", j.QueueTime, 5 * time.Second},
	}
	for _, c := range checks {
		got, ok := c.fn()
		if !ok || got != c.want {
			t.Errorf("%s = %v (ok=%v), want %v", c.name, got, ok, c.want)
		}
	}
}

func TestOff_UnregisterFromFinishedHandler(t *testing.T) {
	j, _ := newTestJob(t, time.Second)
	calls := 0
	var h event.Handle
	h = j.On(EventFinished, func(job *Job) {
		calls++
		job.Off(EventFinished, h)
	})
	j.RunFor(time.Second)
	j.MarkFinish()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if j.events.Count(EventFinished) != 0 {
		t.Error("handler still registered after self-unregister")
	}
}

func TestSequence(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	seq := NewSequence(0)
	a := seq.New(time.Second, 0, clk)
	b := seq.New(time.Second, time.Second, clk)
	if a.ID() != 0 || b.ID() != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", a.ID(), b.ID())
	}
	if b.Delay() != time.Second {
		t.Errorf("Delay = %v, want 1s", b.Delay())
	}
	other := NewSequence(0)
	if other.Next() != 0 {
		t.Error("sequences must be independent")
	}
}
