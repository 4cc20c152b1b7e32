package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

// QueryTags returns the ids of items matching the tag set under the given
// match mode, ordered by id. This is the resolver behind bulk operations:
// the result is a concrete id list, frozen before the bulk run starts.
func (idx *Index) QueryTags(ctx context.Context, tags []string, mode MatchMode) ([]string, error) {
	idx.refreshStale(ctx)

	done := metrics.ObserveQuery("query_tags")

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Case-variant duplicates resolve to one tag_id under the NOCASE
	// collation; dedupe so the all-mode count matches what can exist.
	tags = dataset.NormalizeTags(tags)
	if len(tags) == 0 {
		done(nil)
		return []string{}, nil
	}
	if mode == "" {
		mode = MatchAll
	}
	if mode != MatchAll && mode != MatchAny {
		err := fmt.Errorf("unknown match mode %q", mode)
		done(err)
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tags)), ", ")
	query := `
		SELECT it.item_id FROM item_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE t.name IN (` + placeholders + `)`
	if mode == MatchAll {
		query += fmt.Sprintf(`
		GROUP BY it.item_id
		HAVING COUNT(DISTINCT it.tag_id) = %d`, len(tags))
	} else {
		query += `
		GROUP BY it.item_id`
	}
	query += `
		ORDER BY it.item_id`

	args := make([]interface{}, len(tags))
	for i, tag := range tags {
		args[i] = tag
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close rows: %v", closeErr)
		}
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			done(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return ids, nil
}

// AllTags returns the tag catalog with per-tag item counts, ordered by count
// descending then name.
func (idx *Index) AllTags(ctx context.Context) ([]TagCount, error) {
	idx.refreshStale(ctx)

	done := metrics.ObserveQuery("all_tags")

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := idx.db.QueryContext(ctx, `
		SELECT t.name, COUNT(it.item_id) AS cnt
		FROM tags t
		JOIN item_tags it ON it.tag_id = t.id
		GROUP BY t.id
		ORDER BY cnt DESC, t.name COLLATE NOCASE`)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close rows: %v", closeErr)
		}
	}()

	tags := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			done(err)
			return nil, err
		}
		tags = append(tags, tc)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return tags, nil
}

// GetStats summarizes the indexed dataset for the stats endpoint.
func (idx *Index) GetStats(ctx context.Context) (*Stats, error) {
	idx.refreshStale(ctx)

	done := metrics.ObserveQuery("stats")

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := &Stats{}
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&stats.TotalItems); err != nil {
		done(err)
		return nil, err
	}
	if err := idx.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT item_id) FROM item_tags").Scan(&stats.TaggedItems); err != nil {
		done(err)
		return nil, err
	}
	stats.UntaggedItems = stats.TotalItems - stats.TaggedItems
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&stats.DistinctTags); err != nil {
		done(err)
		return nil, err
	}

	var lastIndexed int64
	if err := idx.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(indexed_at), 0) FROM items").Scan(&lastIndexed); err != nil {
		done(err)
		return nil, err
	}
	if lastIndexed > 0 {
		stats.LastIndexed = time.Unix(lastIndexed, 0)
	}

	done(nil)
	return stats, nil
}
