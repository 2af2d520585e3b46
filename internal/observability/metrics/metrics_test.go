package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSyncMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.ObserveFetch("admissions", "ok")
	m.ObserveFetch("admissions", "error")
	m.ObserveStaleDiscard("admissions")
	m.ObserveRefreshSignal("appointments")
	m.ObserveCacheOp("hit")
	m.ObserveNormalizeDuration("admissions", 0.02)
}

func TestSyncMetricsCounterValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.ObserveCacheOp("miss")
	m.ObserveCacheOp("miss")
	m.ObserveCacheOp("corrupt")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var ops *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "portalsync_refcache_ops_total" {
			ops = f
		}
	}
	if ops == nil {
		t.Fatal("refcache ops family not registered")
	}
	got := map[string]float64{}
	for _, metric := range ops.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "result" {
				got[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if got["miss"] != 2 || got["corrupt"] != 1 {
		t.Fatalf("unexpected counter values: %v", got)
	}
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var m *SyncMetrics
	m.ObserveFetch("admissions", "ok")
	m.ObserveStaleDiscard("admissions")
	m.ObserveRefreshSignal("admissions")
	m.ObserveCacheOp("hit")
	m.ObserveNormalizeDuration("admissions", 0.1)
}
