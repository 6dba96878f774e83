package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/footdata/understat-crawler/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns all collectors for
// page fetches, batch completions, phase runtimes, and throttle waits.
type PrometheusSink struct {
	pagesFetched  *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	batchesDone  *prometheus.CounterVec
	phaseRuntime *prometheus.HistogramVec

	throttleWaits prometheus.Counter
	throttleWait  prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_pages_fetched_total",
			Help: "Pages fetched, extracted, and persisted, partitioned by phase.",
		}, []string{"phase"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_fetch_bytes_total",
			Help: "Raw page bytes downloaded per phase.",
		}, []string{"phase"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawl_fetch_duration_seconds",
			Help:    "End-to-end per-page latency partitioned by phase.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"phase"}),
		batchesDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_batches_completed_total",
			Help: "Completed batches partitioned by phase.",
		}, []string{"phase"}),
		phaseRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawl_phase_runtime_seconds",
			Help:    "Wall time per completed phase.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"phase"}),
		throttleWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_throttle_waits_total",
			Help: "Throttle sentinel responses that triggered a cooldown.",
		}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawl_throttle_wait_seconds",
			Help:    "Cooldown durations slept after a throttle signal.",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.pagesFetched,
		s.fetchBytes,
		s.fetchDuration,
		s.batchesDone,
		s.phaseRuntime,
		s.throttleWaits,
		s.throttleWait,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	phase := evt.Phase
	if phase == "" {
		phase = "unknown"
	}
	switch evt.Stage {
	case progress.StageFetchDone:
		s.pagesFetched.WithLabelValues(phase).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(phase).Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(phase).Observe(evt.Dur.Seconds())
		}
	case progress.StageBatchDone:
		s.batchesDone.WithLabelValues(phase).Inc()
	case progress.StagePhaseDone:
		if evt.Dur > 0 {
			s.phaseRuntime.WithLabelValues(phase).Observe(evt.Dur.Seconds())
		}
	case progress.StageThrottleWait:
		s.throttleWaits.Inc()
		if evt.Dur > 0 {
			s.throttleWait.Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
