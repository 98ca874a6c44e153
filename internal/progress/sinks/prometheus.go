package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/opportunity-crawler/internal/progress"
)

// PrometheusSink exports run and search-loop progress as Prometheus metrics.
type PrometheusSink struct {
	runsStarted     prometheus.Counter
	runsCompleted   prometheus.Counter
	runDuration     prometheus.Histogram
	instances       *prometheus.CounterVec
	instanceRuntime *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	pages           *prometheus.CounterVec
	selections      prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppcrawler_runs_started_total",
			Help: "Batch runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppcrawler_runs_completed_total",
			Help: "Batch runs completed.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oppcrawler_run_duration_seconds",
			Help:    "Wall time per batch run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppcrawler_instances_total",
			Help: "Search-loop instances partitioned by result.",
		}, []string{"result"}),
		instanceRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oppcrawler_instance_duration_seconds",
			Help:    "Wall time per search-loop instance.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppcrawler_state_transitions_total",
			Help: "Search-loop states entered.",
		}, []string{"state"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppcrawler_candidate_pages_total",
			Help: "Candidate page loads partitioned by outcome.",
		}, []string{"outcome"}),
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppcrawler_selections_total",
			Help: "Websites chosen by completed instances before deduplication.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.instances,
		s.instanceRuntime,
		s.transitions,
		s.pages,
		s.selections,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
		case progress.StageRunDone:
			s.runsCompleted.Inc()
			if evt.Dur > 0 {
				s.runDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageInstanceDone:
			s.finishInstance(evt, "success")
			s.selections.Add(float64(evt.Count))
		case progress.StageInstanceError:
			s.finishInstance(evt, "error")
		case progress.StageInstanceState:
			s.transitions.WithLabelValues(evt.State).Inc()
		case progress.StageFetchDone:
			s.pages.WithLabelValues("success").Inc()
		case progress.StageFetchError:
			s.pages.WithLabelValues("error").Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) finishInstance(evt progress.Event, result string) {
	s.instances.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.instanceRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
