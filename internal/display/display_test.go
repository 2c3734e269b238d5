package display

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/executor"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

type rig struct {
	clk   *clock.Manual
	sched scheduler.Scheduler
	src   producer.Source
	unit  executor.Unit
}

func newRig(t *testing.T, count int, exec time.Duration) *rig {
	t.Helper()
	clk := clock.NewManual(time.Unix(0, 0))
	sched := scheduler.NewFCFS(scheduler.DefaultOptions())
	src := producer.NewRandom(sched, clk, producer.Options{Count: count, MinTime: exec, MaxTime: exec, Seed: 1})
	return &rig{clk: clk, sched: sched, src: src, unit: executor.NewSingle(sched, executor.Options{})}
}

func (r *rig) run(t *testing.T, d Display, step time.Duration, maxTicks int) {
	t.Helper()
	if err := r.src.Produce(); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	for i := 0; i < maxTicks && (r.sched.Pending() > 0 || r.src.Count() > 0); i++ {
		r.src.Tick(step)
		r.sched.Tick(step)
		r.clk.Advance(step)
		r.unit.Tick(step)
		d.Tick(step)
	}
}

func TestConsole_TracksJobs(t *testing.T) {
	r := newRig(t, 3, 500*time.Millisecond)
	var buf bytes.Buffer
	d := NewConsole(r.src, &buf, nil)

	r.run(t, d, 250*time.Millisecond, 100)
	d.Stats()

	if d.Completed() != 3 || d.Waiting() != 0 || d.Running() != 0 {
		t.Fatalf("completed=%d waiting=%d running=%d", d.Completed(), d.Waiting(), d.Running())
	}
	avg, ok := d.AverageLatency()
	if !ok || avg < 500*time.Millisecond {
		t.Errorf("AverageLatency = %v, %v; want >= 500ms", avg, ok)
	}
	if len(d.handles) != 0 {
		t.Errorf("%d jobs still subscribed after finishing", len(d.handles))
	}

	out := buf.String()
	for _, want := range []string{"jobs waiting in queue", "Job #   | Arrival Time", "Averaged latency:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_StatusOncePerSecond(t *testing.T) {
	r := newRig(t, 1, 10*time.Second)
	var buf bytes.Buffer
	d := NewConsole(r.src, &buf, nil)

	for i := 0; i < 9; i++ {
		d.Tick(250 * time.Millisecond)
	}
	if got := strings.Count(buf.String(), "jobs waiting in queue"); got != 2 {
		t.Errorf("status printed %d times in 2.25s, want 2", got)
	}
}

func TestConsole_RunningRowsInStartOrder(t *testing.T) {
	r := newRig(t, 2, 5*time.Second)
	var buf bytes.Buffer
	d := NewConsole(r.src, &buf, nil)
	r.unit = executor.NewMulti(r.sched, executor.Options{Cores: 2})

	r.run(t, d, 500*time.Millisecond, 6) // both released, both running
	if d.Running() != 2 {
		t.Fatalf("running = %d, want 2", d.Running())
	}
	buf.Reset()
	d.Tick(time.Second)
	out := buf.String()
	first, second := strings.Index(out, "Job 0  "), strings.Index(out, "Job 1  ")
	if first < 0 || second < 0 || first > second {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestStats_NoCompletedJobs(t *testing.T) {
	r := newRig(t, 0, time.Second)
	var buf bytes.Buffer
	d := NewConsole(r.src, &buf, nil)
	d.Stats()
	if !strings.Contains(buf.String(), "No jobs completed") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLogFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newRig(t, 2, 300*time.Millisecond)
	d, err := New(model.DisplayLogFile, r.src, Options{LogFile: path})
	if err != nil {
		t.Fatalf("New(log-file): %v", err)
	}
	r.run(t, d, 200*time.Millisecond, 100)
	d.Stats()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "previous run\n") || !strings.Contains(string(data), "Averaged latency:") {
		t.Errorf("log file content:\n%s", data)
	}
}

func TestNew_Kinds(t *testing.T) {
	r := newRig(t, 0, time.Second)
	for _, kind := range []model.DisplayKind{model.DisplayConsole, model.DisplayNone} {
		d, err := New(kind, r.src, Options{Writer: &bytes.Buffer{}})
		if err != nil || d.Kind() != kind {
			t.Errorf("New(%s) = %v, %v", kind, d, err)
		}
	}
	if _, err := New(model.DisplayLogFile, r.src, Options{}); err == nil {
		t.Error("log-file without a path should fail")
	}
	if _, err := New("html", r.src, Options{}); err == nil {
		t.Error("unknown kind should fail")
	}
}
