package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

// BulkItemResult reports the outcome of one item inside a bulk run.
type BulkItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"` // applied, skipped, conflict, error
	Error  string `json:"error,omitempty"`
}

// BulkResult reports a whole bulk run. Applied counts real writes; Skipped
// counts items the operation did not change.
type BulkResult struct {
	Applied   int              `json:"applied"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Items     []BulkItemResult `json:"items"`
}

// BulkApply runs one operation over a resolved list of item ids, item by
// item. Failures don't stop the run; every item gets a per-item verdict.
// All successful writes are recorded as a single undo entry, so one undo
// reverts the whole run. Cancellation via ctx stops between items, never
// mid-write, and what was already applied stays applied (and undoable).
func (s *Session) BulkApply(ctx context.Context, ids []string, op Operation) (*BulkResult, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("bulk operation requires at least one item")
	}

	metrics.BulkRunsTotal.Inc()
	logging.Info("Bulk %s over %d items", op.Kind, len(ids))

	result := &BulkResult{Items: make([]BulkItemResult, 0, len(ids))}
	var steps []step

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			logging.Warn("Bulk %s cancelled after %d of %d items", op.Kind, len(result.Items), len(ids))
			break
		}

		res, err := s.applyOnce(id, op)
		metrics.ObserveEdit(string(op.Kind), err)
		switch {
		case errors.Is(err, dataset.ErrConflict):
			result.Failed++
			metrics.BulkItemsTotal.WithLabelValues("conflict").Inc()
			result.Items = append(result.Items, BulkItemResult{ID: id, Status: "conflict", Error: err.Error()})
		case err != nil:
			result.Failed++
			metrics.BulkItemsTotal.WithLabelValues("error").Inc()
			result.Items = append(result.Items, BulkItemResult{ID: id, Status: "error", Error: err.Error()})
		case !res.changed:
			result.Skipped++
			metrics.BulkItemsTotal.WithLabelValues("skipped").Inc()
			result.Items = append(result.Items, BulkItemResult{ID: id, Status: "skipped"})
		default:
			result.Applied++
			metrics.BulkItemsTotal.WithLabelValues("applied").Inc()
			result.Items = append(result.Items, BulkItemResult{ID: id, Status: "applied"})
			steps = append(steps, step{
				id:       id,
				forward:  op,
				inverse:  res.inverse,
				beforeFP: res.before,
				afterFP:  res.after,
			})
		}
	}

	if len(steps) > 0 {
		s.mu.Lock()
		s.lastUsed = time.Now()
		s.push(entry{
			label: fmt.Sprintf("bulk %s (%d items)", op.Kind, len(steps)),
			steps: steps,
		})
		s.mu.Unlock()
	}

	logging.Info("Bulk %s done: %d applied, %d skipped, %d failed",
		op.Kind, result.Applied, result.Skipped, result.Failed)
	return result, nil
}
