// Package metrics exposes simulation progress as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/schedsim/internal/scheduler"
)

// Collectors holds the simulation metrics. All series are labelled with the
// scheduling policy.
type Collectors struct {
	arrived    *prometheus.CounterVec
	finished   *prometheus.CounterVec
	wait       *prometheus.HistogramVec
	turnaround *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

// latencyBuckets spans sub-second to several-minute job latencies.
var latencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		arrived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedsim_jobs_arrived_total",
				Help: "Total number of jobs that arrived at a scheduler.",
			},
			[]string{"policy"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedsim_jobs_finished_total",
				Help: "Total number of jobs retired by a scheduler.",
			},
			[]string{"policy"},
		),
		wait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedsim_job_wait_seconds",
				Help:    "Simulated time between a job's arrival and its first execution.",
				Buckets: latencyBuckets,
			},
			[]string{"policy"},
		),
		turnaround: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedsim_job_turnaround_seconds",
				Help:    "Simulated time between a job's arrival and its completion.",
				Buckets: latencyBuckets,
			},
			[]string{"policy"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "schedsim_queue_depth",
				Help: "Jobs currently queued in a scheduler.",
			},
			[]string{"policy"},
		),
	}
	reg.MustRegister(c.arrived, c.finished, c.wait, c.turnaround, c.queueDepth)
	return c
}

// Observe subscribes to sched's events. The returned function unsubscribes
// and removes any jobs still queued from the depth gauge.
func (c *Collectors) Observe(sched scheduler.Scheduler) (detach func()) {
	policy := string(sched.Kind())
	arrived := c.arrived.WithLabelValues(policy)
	finished := c.finished.WithLabelValues(policy)
	wait := c.wait.WithLabelValues(policy)
	turnaround := c.turnaround.WithLabelValues(policy)
	depth := c.queueDepth.WithLabelValues(policy)

	onArrived := sched.On(scheduler.EventJobArrived, func(ev scheduler.Event) {
		arrived.Inc()
		depth.Inc()
	})
	onFinished := sched.On(scheduler.EventJobFinished, func(ev scheduler.Event) {
		finished.Inc()
		depth.Dec()
		if d, ok := ev.Job.WaitTime(); ok {
			wait.Observe(d.Seconds())
		}
		if d, ok := ev.Job.TotalTime(); ok {
			turnaround.Observe(d.Seconds())
		}
	})

	return func() {
		depth.Sub(float64(sched.Pending()))
		sched.Off(scheduler.EventJobArrived, onArrived)
		sched.Off(scheduler.EventJobFinished, onFinished)
	}
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors alongside anything registered later.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
