package producer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

func testSetup(t *testing.T) (scheduler.Scheduler, *clock.Manual) {
	t.Helper()
	return scheduler.NewFCFS(scheduler.DefaultOptions()), clock.NewManual(time.Unix(0, 0))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNew_Kinds(t *testing.T) {
	sched, clk := testSetup(t)
	src, err := New(model.ProducerRandom, sched, clk, Options{Count: 1})
	if err != nil || src.Kind() != model.ProducerRandom {
		t.Fatalf("New(random) = %v, %v", src, err)
	}
	if _, err := New(model.ProducerBatchFile, sched, clk, Options{}); err == nil {
		t.Error("batch-file without a jobs file should fail")
	}
	if _, err := New("manual", sched, clk, Options{}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestRandom_Produce(t *testing.T) {
	sched, clk := testSetup(t)
	src := NewRandom(sched, clk, Options{
		Count:   50,
		MinTime: 100 * time.Millisecond,
		MaxTime: 10 * time.Second,
		Seed:    42,
	})

	var created []*job.Job
	src.On(EventNewJob, func(j *job.Job) { created = append(created, j) })

	if err := src.Produce(); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(created) != 50 || src.Count() != 50 {
		t.Fatalf("created=%d count=%d, want 50", len(created), src.Count())
	}
	for i, j := range created {
		if j.ExecuteTime() < 100*time.Millisecond || j.ExecuteTime() > 10*time.Second {
			t.Errorf("job %d execute time %v out of bounds", j.ID(), j.ExecuteTime())
		}
		if want := time.Duration(i+1) * time.Second; j.Delay() != want {
			t.Errorf("job %d delay = %v, want %v", j.ID(), j.Delay(), want)
		}
		if j.ID() != uint64(i) {
			t.Errorf("job id = %d, want %d", j.ID(), i)
		}
	}
}

func TestRandom_SeedIsReproducible(t *testing.T) {
	gen := func() []time.Duration {
		sched, clk := testSetup(t)
		src := NewRandom(sched, clk, Options{Count: 5, MinTime: 0, MaxTime: time.Minute, Seed: 7})
		var out []time.Duration
		src.On(EventNewJob, func(j *job.Job) { out = append(out, j.ExecuteTime()) })
		src.Produce()
		return out
	}
	a, b := gen(), gen()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestTick_ReleasesByDelay(t *testing.T) {
	sched, clk := testSetup(t)
	src := NewRandom(sched, clk, Options{Count: 3, MinTime: time.Second, MaxTime: time.Second, Seed: 1})
	if err := src.Produce(); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	src.Tick(500 * time.Millisecond)
	if sched.Pending() != 0 {
		t.Fatalf("released early: pending=%d", sched.Pending())
	}
	src.Tick(500 * time.Millisecond)
	if sched.Pending() != 1 || src.Count() != 2 {
		t.Fatalf("after 1s: pending=%d count=%d", sched.Pending(), src.Count())
	}
	src.Tick(5 * time.Second)
	if sched.Pending() != 3 || src.Count() != 0 {
		t.Fatalf("after 6s: pending=%d count=%d", sched.Pending(), src.Count())
	}
	src.Tick(time.Second) // empty queue is a no-op
}

func TestBatchFile_CSVSortedByDelay(t *testing.T) {
	path := writeFile(t, "jobs.csv", "5, 1.5\n0,2\n# comment\n\n2.5 , 4\n")
	sched, clk := testSetup(t)
	src := NewBatchFile(sched, clk, Options{JobsFile: path})

	newJobs := 0
	src.On(EventNewJob, func(*job.Job) { newJobs++ })
	if err := src.Produce(); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if newJobs != 3 {
		t.Errorf("new-job events = %d, want 3", newJobs)
	}

	var delays []time.Duration
	var execs []time.Duration
	for _, p := range src.queue {
		delays = append(delays, p.delay)
		execs = append(execs, p.job.ExecuteTime())
	}
	wantDelays := []time.Duration{0, 2500 * time.Millisecond, 5 * time.Second}
	wantExecs := []time.Duration{2 * time.Second, 4 * time.Second, 1500 * time.Millisecond}
	for i := range wantDelays {
		if delays[i] != wantDelays[i] || execs[i] != wantExecs[i] {
			t.Fatalf("queue = %v / %v, want %v / %v", delays, execs, wantDelays, wantExecs)
		}
	}

	src.Tick(0)
	if sched.Pending() != 1 {
		t.Errorf("zero-delay job not released on first tick")
	}
}

func TestBatchFile_YAML(t *testing.T) {
	path := writeFile(t, "jobs.yaml", "- {delay: 3, execute: 1}\n- delay: 1\n  execute: 0.25\n")
	records, err := ReadBatchFile(path)
	if err != nil {
		t.Fatalf("ReadBatchFile: %v", err)
	}
	if len(records) != 2 || records[1].Execute != 250*time.Millisecond || records[0].Delay != 3*time.Second {
		t.Errorf("records = %+v", records)
	}
}

func TestBatchFile_MalformedRecords(t *testing.T) {
	tests := []struct {
		name, file, content string
		record              int
	}{
		{"non-numeric", "bad.csv", "1,2\nx,3\n", 2},
		{"one field", "short.csv", "1\n", 1},
		{"three fields", "long.csv", "1,2\n3,4,5\n", 2},
		{"negative", "neg.csv", "-1,2\n", 1},
		{"yaml missing field", "bad.yaml", "- {delay: 1}\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			sched, clk := testSetup(t)
			src := NewBatchFile(sched, clk, Options{JobsFile: path})
			err := src.Produce()
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if pe.Record != tt.record {
				t.Errorf("Record = %d, want %d", pe.Record, tt.record)
			}
			if !strings.Contains(pe.Error(), tt.file) {
				t.Errorf("error %q does not name the file", pe.Error())
			}
			if src.Count() != 0 {
				t.Errorf("partial batch queued: %d jobs", src.Count())
			}
		})
	}
}

func TestBatchFile_MissingFile(t *testing.T) {
	sched, clk := testSetup(t)
	src := NewBatchFile(sched, clk, Options{JobsFile: filepath.Join(t.TempDir(), "nope.csv")})
	if err := src.Produce(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
