// Package metrics defines the Prometheus metrics exported by the dataset
// editing service. All metrics carry the dataset_studio_ prefix and are
// registered via promauto at package load.
//
// The package also provides ObserveQuery/ObserveEdit helpers used by the
// index and edit pipeline, and a RuntimeCollector for process statistics.
package metrics
