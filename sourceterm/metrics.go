package sourceterm

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts point source loads. All series carry a "mode" label, the
// per rank gauge a "rank" label as well.
type Metrics struct {
	Located         *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	Deduplicated    *prometheus.CounterVec
	ClusterMappings *prometheus.GaugeVec
	LoadDuration    *prometheus.HistogramVec
}

// NewMetrics creates the load metrics and registers them on reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Located: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcemap",
			Name:      "sources_located_total",
			Help:      "Point sources found inside a rank local element, before deduplication.",
		}, []string{"mode"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcemap",
			Name:      "sources_dropped_total",
			Help:      "Point sources no rank found.",
		}, []string{"mode"}),
		Deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcemap",
			Name:      "sources_deduplicated_total",
			Help:      "Point sources given up to a lower rank.",
		}, []string{"mode"}),
		ClusterMappings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sourcemap",
			Name:      "cluster_mappings",
			Help:      "Cell to sources mappings of the last load of a rank.",
		}, []string{"mode", "rank"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sourcemap",
			Name:      "load_duration_seconds",
			Help:      "Wall time of a point source load.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"mode"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Located, m.Dropped, m.Deduplicated, m.ClusterMappings, m.LoadDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(r *LoadResult, seconds float64) {
	if m == nil {
		return
	}
	mode := r.Mode.String()
	m.Located.WithLabelValues(mode).Add(float64(r.Located))
	// Every rank sees the same unassigned sources
	if r.Rank == 0 {
		m.Dropped.WithLabelValues(mode).Add(float64(r.Dropped))
	}
	m.Deduplicated.WithLabelValues(mode).Add(float64(r.Cleaned))
	var mappings int
	for _, cm := range r.ClusterMappings {
		mappings += len(cm.CellToSources)
	}
	m.ClusterMappings.WithLabelValues(mode, strconv.Itoa(r.Rank)).Set(float64(mappings))
	m.LoadDuration.WithLabelValues(mode).Observe(seconds)
}
