// Package metrics records per-call engine metrics on a caller supplied
// prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notargets/gopart/types"
)

// Recorder holds the metric vectors of one registry. A nil Recorder records
// nothing, so engines built without metrics need no special casing.
type Recorder struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective *prometheus.HistogramVec
	levels    *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Labels: family (METIS, ParMETIS), op, status (METIS_OK, METIS_ERROR_INPUT, ...)
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gopart_calls_total",
			Help: "Engine calls by operation and result status",
		}, []string{"family", "op", "status"}),

		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gopart_call_duration_seconds",
			Help:    "Engine call duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"family", "op"}),

		objective: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gopart_objective_value",
			Help:    "Edge-cut or communication volume returned by successful calls",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"family", "op"}),

		levels: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gopart_coarsening_levels",
			Help:    "Number of graphs in the coarsening hierarchy",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"op"}),
	}
}

// Observe records the outcome of one call that started at start.
func (r *Recorder) Observe(family types.Family, op string, start time.Time, objval int64, err error) {
	if r == nil {
		return
	}
	fam := family.String()
	r.calls.WithLabelValues(fam, op, types.StatusOf(err).String()).Inc()
	r.duration.WithLabelValues(fam, op).Observe(time.Since(start).Seconds())
	if err == nil {
		r.objective.WithLabelValues(fam, op).Observe(float64(objval))
	}
}

// Levels records the depth of a coarsening hierarchy.
func (r *Recorder) Levels(op string, n int) {
	if r == nil {
		return
	}
	r.levels.WithLabelValues(op).Observe(float64(n))
}
