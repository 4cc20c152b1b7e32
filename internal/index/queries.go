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

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// List returns one page of items matching the filter, ordered by id. The
// cursor is the last id of the previous page; an empty cursor starts from
// the beginning.
func (idx *Index) List(ctx context.Context, f Filter) (*Page, error) {
	idx.refreshStale(ctx)

	done := metrics.ObserveQuery("list")

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	where, args, err := idx.buildFilter(f)
	if err != nil {
		done(err)
		return nil, err
	}

	countQuery := "SELECT COUNT(*) FROM items i" + where
	var total int
	if err := idx.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		done(err)
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	pageWhere := where
	pageArgs := args
	if f.Cursor != "" {
		if pageWhere == "" {
			pageWhere = " WHERE i.id > ?"
		} else {
			pageWhere += " AND i.id > ?"
		}
		pageArgs = append(append([]interface{}{}, args...), f.Cursor)
	}

	query := `
		SELECT i.id, i.image_path, i.caption, i.image_size, i.mod_time
		FROM items i` + pageWhere + `
		ORDER BY i.id
		LIMIT ?`
	pageArgs = append(pageArgs, limit+1)

	rows, err := idx.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close rows: %v", closeErr)
		}
	}()

	items := make([]ItemSummary, 0, limit)
	for rows.Next() {
		var s ItemSummary
		var modTime int64
		if err := rows.Scan(&s.ID, &s.ImagePath, &s.Caption, &s.ImageSize, &modTime); err != nil {
			done(err)
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		s.ModTime = time.Unix(modTime, 0)
		s.Tags = []string{}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	nextCursor := ""
	if len(items) > limit {
		items = items[:limit]
		nextCursor = items[len(items)-1].ID
	}

	if err := idx.attachTags(ctx, items); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return &Page{Items: items, TotalItems: total, NextCursor: nextCursor}, nil
}

// buildFilter renders the WHERE clause shared by the count and page queries.
func (idx *Index) buildFilter(f Filter) (string, []interface{}, error) {
	var conds []string
	var args []interface{}

	if len(f.Tags) > 0 {
		mode := f.Mode
		if mode == "" {
			mode = MatchAll
		}
		if mode != MatchAll && mode != MatchAny {
			return "", nil, fmt.Errorf("unknown match mode %q", f.Mode)
		}

		// Tag names are case-insensitive in the index, so case-variant
		// duplicates in the filter collapse to one tag_id. Dedupe before
		// counting or an all-mode match can never reach the required count.
		tags := dataset.NormalizeTags(f.Tags)
		if len(tags) == 0 {
			// Only blank tags were given; nothing can match.
			conds = append(conds, "1 = 0")
		} else {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tags)), ", ")
			sub := `i.id IN (
			SELECT it.item_id FROM item_tags it
			JOIN tags t ON t.id = it.tag_id
			WHERE t.name IN (` + placeholders + `)`
			if mode == MatchAll {
				sub += fmt.Sprintf(`
			GROUP BY it.item_id
			HAVING COUNT(DISTINCT it.tag_id) = %d`, len(tags))
			}
			sub += `
		)`
			conds = append(conds, sub)
			for _, tag := range tags {
				args = append(args, tag)
			}
		}
	}

	if f.Caption != "" {
		// The trigram tokenizer needs at least three characters; shorter
		// needles fall back to a LIKE scan, as does everything when the
		// driver lacks the fts5 module.
		if idx.fts && len(f.Caption) >= 3 {
			conds = append(conds, "i.rowid IN (SELECT rowid FROM items_fts WHERE items_fts MATCH ?)")
			args = append(args, ftsQuote(f.Caption))
		} else {
			conds = append(conds, "i.caption LIKE ? ESCAPE '\\'")
			args = append(args, "%"+likeEscape(f.Caption)+"%")
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// ftsQuote wraps the needle in double quotes so FTS5 treats it as a phrase
// rather than query syntax.
func ftsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	return strings.ReplaceAll(s, "_", "\\_")
}

// attachTags fills in the Tags slice for one page of summaries, in sidecar
// order, with a single query.
func (idx *Index) attachTags(ctx context.Context, items []ItemSummary) error {
	if len(items) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
	args := make([]interface{}, len(items))
	byID := make(map[string]int, len(items))
	for i := range items {
		args[i] = items[i].ID
		byID[items[i].ID] = i
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT it.item_id, t.name
		FROM item_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE it.item_id IN (`+placeholders+`)
		ORDER BY it.item_id, it.pos`, args...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close rows: %v", closeErr)
		}
	}()

	for rows.Next() {
		var itemID, name string
		if err := rows.Scan(&itemID, &name); err != nil {
			return err
		}
		if i, ok := byID[itemID]; ok {
			items[i].Tags = append(items[i].Tags, name)
		}
	}
	return rows.Err()
}
