package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for the fetch-normalize pipeline
// and the reference cache.
type SyncMetrics struct {
	fetchCycles       *prometheus.CounterVec
	staleDiscards     *prometheus.CounterVec
	refreshSignals    *prometheus.CounterVec
	cacheOps          *prometheus.CounterVec
	normalizeDuration *prometheus.HistogramVec
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		fetchCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portalsync",
			Subsystem: "listview",
			Name:      "fetch_cycles_total",
			Help:      "Total fetch-normalize cycles per resource",
		}, []string{"resource", "status"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portalsync",
			Subsystem: "listview",
			Name:      "stale_responses_discarded_total",
			Help:      "Responses discarded because a newer trigger superseded them",
		}, []string{"resource"}),
		refreshSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portalsync",
			Subsystem: "listview",
			Name:      "refresh_signals_total",
			Help:      "Refresh signal increments from completed mutations",
		}, []string{"resource"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portalsync",
			Subsystem: "refcache",
			Name:      "ops_total",
			Help:      "Reference cache reads by outcome",
		}, []string{"result"}),
		normalizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portalsync",
			Subsystem: "listview",
			Name:      "normalize_duration_seconds",
			Help:      "Duration of one normalize pass",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.fetchCycles, m.staleDiscards, m.refreshSignals, m.cacheOps, m.normalizeDuration)
	return m
}

func (m *SyncMetrics) ObserveFetch(resource, status string) {
	if m == nil {
		return
	}
	m.fetchCycles.WithLabelValues(resource, status).Inc()
}

func (m *SyncMetrics) ObserveStaleDiscard(resource string) {
	if m == nil {
		return
	}
	m.staleDiscards.WithLabelValues(resource).Inc()
}

func (m *SyncMetrics) ObserveRefreshSignal(resource string) {
	if m == nil {
		return
	}
	m.refreshSignals.WithLabelValues(resource).Inc()
}

func (m *SyncMetrics) ObserveCacheOp(result string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(result).Inc()
}

func (m *SyncMetrics) ObserveNormalizeDuration(resource string, seconds float64) {
	if m == nil {
		return
	}
	m.normalizeDuration.WithLabelValues(resource).Observe(seconds)
}
