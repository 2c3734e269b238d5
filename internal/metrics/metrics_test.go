package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/scheduler"
)

// value returns the single sample of the named counter or gauge family, or
// the sample count of a histogram.
func value(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	sched := scheduler.NewFCFS(scheduler.DefaultOptions())
	detach := c.Observe(sched)

	clk := clock.NewManual(time.Unix(0, 0))
	seq := job.NewSequence(1)
	for _, d := range []time.Duration{time.Second, 2 * time.Second} {
		sched.Enqueue(seq.New(d, 0, clk))
	}
	if got := value(t, reg, "schedsim_jobs_arrived_total"); got != 2 {
		t.Errorf("arrived = %v, want 2", got)
	}
	if got := value(t, reg, "schedsim_queue_depth"); got != 2 {
		t.Errorf("queue depth = %v, want 2", got)
	}

	sched.Tick(0)
	j := sched.Next()
	clk.Advance(time.Second)
	j.RunFor(time.Second)
	sched.Tick(time.Second)

	if got := value(t, reg, "schedsim_jobs_finished_total"); got != 1 {
		t.Errorf("finished = %v, want 1", got)
	}
	if got := value(t, reg, "schedsim_queue_depth"); got != 1 {
		t.Errorf("queue depth = %v, want 1", got)
	}
	if got := value(t, reg, "schedsim_job_turnaround_seconds"); got != 1 {
		t.Errorf("turnaround samples = %v, want 1", got)
	}

	detach()
	sched.Enqueue(seq.New(time.Second, 0, clk))
	if got := value(t, reg, "schedsim_jobs_arrived_total"); got != 2 {
		t.Errorf("arrived after detach = %v, want 2", got)
	}
}

func TestObserve_DetachDrainsQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	clk := clock.NewManual(time.Unix(0, 0))
	seq := job.NewSequence(1)

	for range 3 {
		sched := scheduler.NewFCFS(scheduler.DefaultOptions())
		detach := c.Observe(sched)
		for range 5 {
			sched.Enqueue(seq.New(time.Second, 0, clk))
		}
		detach()
	}
	if got := value(t, reg, "schedsim_queue_depth"); got != 0 {
		t.Errorf("queue depth after abandoned runs = %v, want 0", got)
	}
	if got := value(t, reg, "schedsim_jobs_arrived_total"); got != 15 {
		t.Errorf("arrived = %v, want 15", got)
	}
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	c := New(reg)
	c.Observe(scheduler.NewSJN(scheduler.DefaultOptions()))
	c.arrived.WithLabelValues("sjn").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`schedsim_jobs_arrived_total{policy="sjn"} 1`, "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
