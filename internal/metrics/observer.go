package metrics

import "time"

// ObserveQuery starts timing an index operation and returns a completion
// function. Usage:
//
//	done := metrics.ObserveQuery("list_items")
//	...
//	done(err)
func ObserveQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		IndexQueryTotal.WithLabelValues(operation, status).Inc()
		IndexQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// ObserveEdit records the outcome of one edit operation.
func ObserveEdit(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EditsTotal.WithLabelValues(kind, status).Inc()
}
