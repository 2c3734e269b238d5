package scheduler

import (
	"reflect"
	"testing"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/pkg/model"
)

// harness bundles a manual clock with a job factory.
type harness struct {
	clk *clock.Manual
	seq *job.Sequence
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{clk: clock.NewManual(time.Unix(0, 0)), seq: job.NewSequence(1)}
}

func (h *harness) job(exec time.Duration) *job.Job {
	return h.seq.New(exec, 0, h.clk)
}

// serve emulates one execution unit spending budget against s and returns
// the ids of the jobs it ran.
func serve(s Scheduler, budget time.Duration) []uint64 {
	var ids []uint64
	for budget > 0 {
		j := s.Next()
		if j == nil {
			break
		}
		used := min(budget, j.TimeLeft())
		j.RunFor(used)
		budget -= used
		ids = append(ids, j.ID())
	}
	return ids
}

// drive runs ticks of length step with one unit until the scheduler drains
// or maxTicks is reached, returning the id served in each tick (0 = idle).
func (h *harness) drive(s Scheduler, step time.Duration, maxTicks int) []uint64 {
	var seq []uint64
	for i := 0; i < maxTicks; i++ {
		h.clk.Advance(step)
		s.Tick(step)
		if s.Pending() == 0 {
			break
		}
		ids := serve(s, step)
		if len(ids) == 0 {
			seq = append(seq, 0)
			continue
		}
		seq = append(seq, ids...)
	}
	return seq
}

func repeat(id uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = id
	}
	return out
}

func concat(parts ...[]uint64) []uint64 {
	var out []uint64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestNew_Registry(t *testing.T) {
	for _, kind := range model.SchedulerKinds() {
		s, err := New(kind, DefaultOptions())
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if s.Kind() != kind {
			t.Errorf("Kind() = %s, want %s", s.Kind(), kind)
		}
	}
	if _, err := New("lottery", DefaultOptions()); err == nil {
		t.Error("expected error for unknown kind")
	}
	if got := Kinds(); len(got) != len(model.SchedulerKinds()) {
		t.Errorf("Kinds() = %v", got)
	}
}

func TestFCFS_ArrivalOrder(t *testing.T) {
	h := newHarness(t)
	s := NewFCFS(DefaultOptions())
	j1, j2, j3 := h.job(5*time.Second), h.job(3*time.Second), h.job(time.Second)
	s.Enqueue(j1)
	s.Enqueue(j2)
	s.Enqueue(j3)

	got := h.drive(s, time.Second, 20)
	want := concat(repeat(1, 5), repeat(2, 3), repeat(3, 1))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dispatch = %v, want %v", got, want)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestFCFS_LeftoverBudgetServesNextJob(t *testing.T) {
	h := newHarness(t)
	s := NewFCFS(DefaultOptions())
	for _, d := range []time.Duration{5, 3, 1} {
		s.Enqueue(h.job(d * time.Second))
	}

	var finished []uint64
	s.On(EventJobFinished, func(e Event) { finished = append(finished, e.Job.ID()) })

	s.Tick(0)
	ids := serve(s, 10*time.Second)
	if want := []uint64{1, 2, 3}; !reflect.DeepEqual(ids, want) {
		t.Errorf("served = %v, want %v", ids, want)
	}
	if s.Next() != nil {
		t.Error("Next should return nil once the cursor passes the queue")
	}
	if len(finished) != 0 {
		t.Error("jobs must not be retired before the next Tick")
	}

	s.Tick(0)
	if want := []uint64{1, 2, 3}; !reflect.DeepEqual(finished, want) {
		t.Errorf("finished events = %v, want %v", finished, want)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestFCFS_CursorHandsOutDistinctJobs(t *testing.T) {
	h := newHarness(t)
	s := NewFCFS(DefaultOptions())
	for i := 0; i < 3; i++ {
		s.Enqueue(h.job(time.Minute))
	}
	s.Tick(time.Second)
	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		j := s.Next()
		if j == nil {
			t.Fatalf("Next #%d returned nil", i)
		}
		if seen[j.ID()] {
			t.Fatalf("job %d dispatched twice", j.ID())
		}
		seen[j.ID()] = true
	}
	if s.Next() != nil {
		t.Error("expected nil after all jobs dispatched")
	}
	s.Tick(time.Second)
	if j := s.Next(); j == nil || j.ID() != 1 {
		t.Errorf("cursor not rewound: got %v", j)
	}
}

func TestSJN_ShortestFirst(t *testing.T) {
	h := newHarness(t)
	s := NewSJN(DefaultOptions())
	s.Enqueue(h.job(5 * time.Second))
	s.Enqueue(h.job(3 * time.Second))
	s.Enqueue(h.job(time.Second))

	got := h.drive(s, time.Second, 20)
	want := concat(repeat(3, 1), repeat(2, 3), repeat(1, 5))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dispatch = %v, want %v", got, want)
	}
}

func TestSJN_StableTies(t *testing.T) {
	h := newHarness(t)
	s := NewSJN(DefaultOptions())
	s.Enqueue(h.job(2 * time.Second))
	s.Enqueue(h.job(2 * time.Second))
	s.Enqueue(h.job(time.Second))
	s.Enqueue(h.job(2 * time.Second))

	s.Tick(0)
	var order []uint64
	for j := s.Next(); j != nil; j = s.Next() {
		order = append(order, j.ID())
	}
	if want := []uint64{3, 1, 2, 4}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRoundRobin_ShortJobNotStarved(t *testing.T) {
	h := newHarness(t)
	opts := DefaultOptions()
	opts.Quantum = 3 * time.Second
	s := NewRoundRobin(opts)
	long, short := h.job(10*time.Second), h.job(2*time.Second)
	s.Enqueue(long)
	s.Enqueue(short)

	got := h.drive(s, time.Second, 30)

	// The long job gets its first slice, the short job finishes inside its
	// first slice, then the long job resumes.
	if want := []uint64{1, 1, 2, 2, 1}; !reflect.DeepEqual(got[:5], want) {
		t.Errorf("first dispatches = %v, want %v", got[:5], want)
	}
	if short.Status() != job.StatusFinished || long.Status() != job.StatusFinished {
		t.Fatal("both jobs should finish")
	}
	if len(got) != 12 {
		t.Errorf("total slices = %d, want 12 (%v)", len(got), got)
	}
}

func TestRoundRobin_WrapAroundAtQueueBoundary(t *testing.T) {
	h := newHarness(t)
	opts := DefaultOptions()
	opts.Quantum = time.Second
	s := NewRoundRobin(opts)
	for i := 0; i < 3; i++ {
		s.Enqueue(h.job(time.Hour))
	}

	wave := func() []uint64 {
		s.Tick(time.Second)
		var ids []uint64
		for i := 0; i < 2; i++ {
			if j := s.Next(); j != nil {
				j.RunFor(time.Second)
				ids = append(ids, j.ID())
			}
		}
		return ids
	}

	waves := [][]uint64{wave(), wave(), wave()}
	want := [][]uint64{{1, 2}, {3, 1}, {2, 3}}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("waves = %v, want %v", waves, want)
	}
}

func TestRoundRobin_RefusesDoubleDispatch(t *testing.T) {
	h := newHarness(t)
	s := NewRoundRobin(DefaultOptions())
	s.Enqueue(h.job(time.Minute))
	s.Enqueue(h.job(time.Minute))

	s.Tick(time.Second)
	a, b, c := s.Next(), s.Next(), s.Next()
	if a == nil || b == nil || a == b {
		t.Fatalf("expected two distinct jobs, got %v %v", a, b)
	}
	if c != nil {
		t.Errorf("third Next = %v, want nil", c)
	}

	// Empty scheduler never dispatches.
	empty := NewRoundRobin(DefaultOptions())
	empty.Tick(time.Second)
	if empty.Next() != nil {
		t.Error("empty scheduler returned a job")
	}
}

func TestRoundRobin_RetireBeforeCursorKeepsAlignment(t *testing.T) {
	h := newHarness(t)
	opts := DefaultOptions()
	opts.Quantum = time.Second
	s := NewRoundRobin(opts)
	a, b, c := h.job(2*time.Second), h.job(10*time.Second), h.job(10*time.Second)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Enqueue(c)

	wave := func() []uint64 {
		var ids []uint64
		for i := 0; i < 2; i++ {
			if j := s.Next(); j != nil {
				j.RunFor(time.Second)
				ids = append(ids, j.ID())
			}
		}
		return ids
	}

	s.Tick(time.Second)
	if got := wave(); !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Fatalf("wave 1 = %v", got)
	}
	s.Tick(time.Second)
	if got := wave(); !reflect.DeepEqual(got, []uint64{3, 1}) {
		t.Fatalf("wave 2 = %v", got)
	}
	if a.Status() != job.StatusFinished {
		t.Fatal("job 1 should have finished in wave 2")
	}

	// Job 1 sat before the cursor; its removal must not skip job 2.
	s.Tick(time.Second)
	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor = %d, want 0", s.Cursor())
	}
	if got := wave(); !reflect.DeepEqual(got, []uint64{2, 3}) {
		t.Errorf("wave 3 = %v, want [2 3]", got)
	}
}

func TestRoundRobin_RetireAtCursorWraps(t *testing.T) {
	h := newHarness(t)
	opts := DefaultOptions()
	opts.Quantum = time.Hour
	s := NewRoundRobin(opts)
	first, last := h.job(time.Minute), h.job(time.Second)
	s.Enqueue(first)
	s.Enqueue(last)
	s.cursor = 1 // pretend a rotation already moved past the first job

	s.Tick(time.Second)
	if j := s.Next(); j != last {
		t.Fatalf("Next = %v, want job 2", j)
	}
	last.RunFor(time.Second)

	s.Tick(time.Second)
	if s.Cursor() != 0 {
		t.Errorf("Cursor = %d, want 0 after retiring the tail job", s.Cursor())
	}
	if j := s.Next(); j != first {
		t.Errorf("Next = %v, want job 1", j)
	}
}

func TestHybrid_ShortFirstBeforeThreshold(t *testing.T) {
	h := newHarness(t)
	s := NewHybrid(DefaultOptions())
	long := h.job(8 * time.Second)
	s.Enqueue(long)
	h.clk.Advance(5 * time.Second)
	short := h.job(time.Second)
	s.Enqueue(short)

	s.Tick(0)
	if j := s.Next(); j != short {
		t.Errorf("Next = %v, want the shorter young job", j)
	}
}

func TestHybrid_StarvedJobGoesFirst(t *testing.T) {
	h := newHarness(t)
	s := NewHybrid(DefaultOptions())
	long := h.job(8 * time.Second)
	s.Enqueue(long)
	h.clk.Advance(10 * time.Second)
	short := h.job(time.Second)
	s.Enqueue(short)

	s.Tick(0)
	if j := s.Next(); j != long {
		t.Errorf("Next = %v, want the job waiting past the threshold", j)
	}
}

func TestHybrid_ZeroThresholdIsArrivalOrder(t *testing.T) {
	h := newHarness(t)
	opts := DefaultOptions()
	opts.StarvationThreshold = 0
	s := NewHybrid(opts)
	if s.Threshold() != 0 {
		t.Fatalf("Threshold = %v, want 0", s.Threshold())
	}
	long := h.job(8 * time.Second)
	s.Enqueue(long)
	h.clk.Advance(time.Second)
	s.Enqueue(h.job(time.Second))

	s.Tick(0)
	if j := s.Next(); j != long {
		t.Errorf("Next = %v, want Job #1 in arrival order", j)
	}
}

func TestHybrid_OldJobsInArrivalOrder(t *testing.T) {
	h := newHarness(t)
	s := NewHybrid(DefaultOptions())
	l1 := h.job(9 * time.Second)
	s.Enqueue(l1)
	h.clk.Advance(time.Second)
	l2 := h.job(5 * time.Second)
	s.Enqueue(l2) // young: sorted ahead of l1 by remaining time
	h.clk.Advance(11 * time.Second)
	s.Enqueue(h.job(time.Second))

	s.Tick(0)
	var order []*job.Job
	for j := s.Next(); j != nil; j = s.Next() {
		order = append(order, j)
	}
	if len(order) != 3 || order[0] != l1 || order[1] != l2 {
		t.Errorf("order = %v, want [Job #1 Job #2 Job #3]", order)
	}
}

func TestHybrid_ResortsAfterRetirement(t *testing.T) {
	h := newHarness(t)
	s := NewHybrid(DefaultOptions())
	a, b := h.job(time.Second), h.job(9*time.Second)
	s.Enqueue(a)
	s.Enqueue(b)
	h.clk.Advance(time.Second)
	c := h.job(5 * time.Second)
	s.Enqueue(c) // [a c b]

	s.Tick(0)
	if j := s.Next(); j != a {
		t.Fatalf("Next = %v, want job 1", j)
	}
	h.clk.Advance(9500 * time.Millisecond)
	a.RunFor(time.Second)

	// b has now waited 10.5s, c only 9.5s.
	s.Tick(0)
	if j := s.Next(); j != b {
		t.Errorf("Next = %v, want the starved job 2", j)
	}
}

func TestEvents_ArrivedAndFinished(t *testing.T) {
	h := newHarness(t)
	s := NewFCFS(DefaultOptions())
	var arrived, finished []Event
	s.On(EventJobArrived, func(e Event) { arrived = append(arrived, e) })
	fh := s.On(EventJobFinished, func(e Event) { finished = append(finished, e) })

	j := h.job(time.Second)
	s.Enqueue(j)
	if len(arrived) != 1 || arrived[0].Job != j || arrived[0].Scheduler != model.SchedulerFCFS {
		t.Fatalf("arrived = %+v", arrived)
	}
	if _, ok := j.Arrived(); !ok {
		t.Error("Enqueue must mark arrival")
	}

	h.drive(s, time.Second, 5)
	if len(finished) != 1 || finished[0].Job != j {
		t.Errorf("finished = %+v", finished)
	}

	s.Off(EventJobFinished, fh)
	s.Enqueue(h.job(time.Second))
	h.drive(s, time.Second, 5)
	if len(finished) != 1 {
		t.Errorf("handler still called after Off")
	}
}
