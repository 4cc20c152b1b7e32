package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RuntimeCollector exports process runtime statistics that the default Go
// collector does not cover in the shape our dashboards expect.
type RuntimeCollector struct {
	goroutines *prometheus.Desc
	heapAlloc  *prometheus.Desc
	heapSys    *prometheus.Desc
	gcPauses   *prometheus.Desc
}

// NewRuntimeCollector creates a collector for runtime statistics.
func NewRuntimeCollector() *RuntimeCollector {
	return &RuntimeCollector{
		goroutines: prometheus.NewDesc(
			"dataset_studio_goroutines",
			"Number of goroutines currently running",
			nil, nil,
		),
		heapAlloc: prometheus.NewDesc(
			"dataset_studio_heap_alloc_bytes",
			"Bytes of allocated heap objects",
			nil, nil,
		),
		heapSys: prometheus.NewDesc(
			"dataset_studio_heap_sys_bytes",
			"Bytes of heap memory obtained from the OS",
			nil, nil,
		),
		gcPauses: prometheus.NewDesc(
			"dataset_studio_gc_pause_total_seconds",
			"Cumulative GC pause time",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.goroutines
	ch <- c.heapAlloc
	ch <- c.heapSys
	ch <- c.gcPauses
}

// Collect implements prometheus.Collector.
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
	ch <- prometheus.MustNewConstMetric(c.heapAlloc, prometheus.GaugeValue, float64(m.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(c.heapSys, prometheus.GaugeValue, float64(m.HeapSys))
	ch <- prometheus.MustNewConstMetric(c.gcPauses, prometheus.CounterValue, float64(m.PauseTotalNs)/1e9)
}
