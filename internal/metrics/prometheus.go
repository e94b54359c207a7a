// Package metrics exposes ingestion measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/swimresults/internal/core"
)

// Row outcomes reported on rows_total.
const (
	OutcomeAccepted = "accepted"
	OutcomeSkipped  = "skipped"
)

// Recorder implements core.Recorder on a Prometheus registry.
type Recorder struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	rows        *prometheus.CounterVec
	skips       *prometheus.CounterVec
	issues      *prometheus.CounterVec
	inserted    prometheus.Counter
	duplicates  prometheus.Counter
	meets       prometheus.Counter
	corrections *prometheus.CounterVec
	applied     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ core.Recorder = (*Recorder)(nil)

// NewRecorder creates the ingestion metrics. Without WithRegistry a fresh
// registry is used, carrying the Go and process collectors.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "swimresults",
		subsystem: "ingest",
		buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	r.initialize()
	return r
}

func (r *Recorder) initialize() {
	auto := promauto.With(r.registry)

	r.rows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "rows_total",
		Help:      "Result rows analysed, by outcome",
	}, []string{"outcome"})

	r.skips = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "rows_skipped_total",
		Help:      "Skipped result rows, by reason",
	}, []string{"reason"})

	r.issues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "issues_total",
		Help:      "Validation issues raised, by kind",
	}, []string{"kind"})

	r.inserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "results_inserted_total",
		Help:      "Results written to storage",
	})

	r.duplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "results_duplicate_total",
		Help:      "Results skipped because they were already stored",
	})

	r.meets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "meets_committed_total",
		Help:      "Meet groupings committed",
	})

	r.corrections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "corrections_queued_total",
		Help:      "Athlete corrections queued by committed batches, by kind",
	}, []string{"kind"})

	r.applied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "corrections_total",
		Help:      "Athlete corrections by outcome (applied or skipped as stale)",
	}, []string{"outcome"})

	r.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "runs_total",
		Help:      "Preview and commit runs, by operation and status",
	}, []string{"operation", "status"})

	r.duration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Preview and commit run duration",
		Buckets:   r.buckets,
	}, []string{"operation"})
}

// ObserveReport counts the rows and issues of an analysed file.
func (r *Recorder) ObserveReport(rep *core.Report) {
	if rep == nil {
		return
	}
	r.rows.WithLabelValues(OutcomeAccepted).Add(float64(len(rep.Results)))
	r.rows.WithLabelValues(OutcomeSkipped).Add(float64(len(rep.Skipped)))
	for reason, n := range rep.SkipCounts() {
		r.skips.WithLabelValues(string(reason)).Add(float64(n))
	}
	if rep.Issues == nil {
		return
	}
	for kind, n := range rep.Issues.Counts() {
		r.issues.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// ObserveBatch counts a committed meet grouping.
func (r *Recorder) ObserveBatch(b core.BatchResult, corrections []core.QueuedCorrection) {
	r.meets.Inc()
	r.inserted.Add(float64(b.Inserted))
	r.duplicates.Add(float64(b.Duplicates))
	r.applied.WithLabelValues("applied").Add(float64(b.CorrectionsApplied))
	r.applied.WithLabelValues("skipped").Add(float64(b.CorrectionsSkipped))
	for _, c := range corrections {
		r.corrections.WithLabelValues(string(c.Kind)).Inc()
	}
	if b.Duplicates > 0 {
		r.issues.WithLabelValues(string(core.KindDuplicateSkipped)).Add(float64(b.Duplicates))
	}
}

// ObserveRun records the duration and status of a preview or commit.
func (r *Recorder) ObserveRun(operation string, d time.Duration, err error) {
	r.duration.WithLabelValues(operation).Observe(d.Seconds())
	r.runs.WithLabelValues(operation, runStatus(err)).Inc()
}

// runStatus buckets a run error into a low-cardinality label.
func runStatus(err error) string {
	if err == nil {
		return "ok"
	}
	switch core.MapError(err).Code {
	case "ING001":
		return "blocked"
	case "UPL002":
		return "rejected"
	case "UPL004", "UPL005":
		return "cancelled"
	default:
		return "error"
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
