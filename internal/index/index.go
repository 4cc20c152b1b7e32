package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

// Default timeout for index operations
const defaultTimeout = 5 * time.Second

// Loader reloads one item from authoritative storage. Used to reconcile
// entries the scanner marked stale before the next query runs.
type Loader func(id string) (*dataset.Item, error)

// Index manages the derived SQLite index over the dataset.
type Index struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	// fts is true when the driver was compiled with FTS5 support
	// (build with -tags sqlite_fts5). Without it caption search
	// degrades to LIKE scans.
	fts bool

	loader Loader

	staleMu sync.Mutex
	stale   map[string]struct{}
}

// New opens (or creates) the index database at dbPath. The parent directory
// must already exist and be writable; use startup.LoadConfig for validation.
func New(ctx context.Context, dbPath string) (*Index, error) {
	logging.Info("Index database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent readers from tripping
	// over "database is locked" during edit bursts.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to index database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	idx := &Index{
		db:     db,
		dbPath: dbPath,
		stale:  make(map[string]struct{}),
	}

	if err := idx.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logging.Info("Index initialized successfully at %s", dbPath)
	return idx, nil
}

func (idx *Index) initialize(ctx context.Context) error {
	schema := `
	-- Item table: one row per image+sidecar pair, keyed by relative path
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		image_path TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		image_size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Tags table
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name COLLATE NOCASE);

	-- Item-Tag relationship table; pos preserves the sidecar tag order
	CREATE TABLE IF NOT EXISTS item_tags (
		item_id TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		pos INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(item_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_item_tags_item ON item_tags(item_id);
	CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);
	`

	if _, err := idx.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return idx.initializeFTS(ctx)
}

// initializeFTS sets up caption full-text search. FTS5 only exists in the
// driver when compiled with -tags sqlite_fts5; without it the virtual table
// cannot be created and caption search degrades to LIKE scans.
func (idx *Index) initializeFTS(ctx context.Context) error {
	conn, err := idx.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	// Creating a throwaway temp table is the only reliable module check:
	// IF NOT EXISTS on a table persisted by an earlier fts5-enabled build
	// succeeds without ever touching the module.
	if _, err := conn.ExecContext(ctx, "CREATE VIRTUAL TABLE temp.fts_check USING fts5(caption)"); err != nil {
		if !strings.Contains(err.Error(), "no such module: fts5") {
			return err
		}
		// Drop sync triggers an earlier fts5-enabled build may have left
		// behind, otherwise every items write trips over the missing module.
		if _, dropErr := idx.db.ExecContext(ctx, `
			DROP TRIGGER IF EXISTS items_ai;
			DROP TRIGGER IF EXISTS items_ad;
			DROP TRIGGER IF EXISTS items_au;
		`); dropErr != nil {
			return dropErr
		}
		logging.Warn("SQLite driver compiled without FTS5 (build with -tags sqlite_fts5); caption search will use LIKE scans")
		return nil
	}
	if _, err := conn.ExecContext(ctx, "DROP TABLE temp.fts_check"); err != nil {
		return err
	}

	ftsSchema := `
	-- Full-text search over captions
	CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
		caption,
		content='items',
		content_rowid='rowid',
		tokenize='trigram'
	);

	CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
		INSERT INTO items_fts(rowid, caption) VALUES (new.rowid, new.caption);
	END;

	CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
		INSERT INTO items_fts(items_fts, rowid, caption) VALUES('delete', old.rowid, old.caption);
	END;

	CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items BEGIN
		INSERT INTO items_fts(items_fts, rowid, caption) VALUES('delete', old.rowid, old.caption);
		INSERT INTO items_fts(rowid, caption) VALUES (new.rowid, new.caption);
	END;

	-- Re-derive the search index from the content table so writes made by an
	-- fts5-less build (triggers dropped) are picked back up.
	INSERT INTO items_fts(items_fts) VALUES('rebuild');
	`
	if _, err := idx.db.ExecContext(ctx, ftsSchema); err != nil {
		return err
	}
	idx.fts = true
	return nil
}

// FTSEnabled reports whether caption search runs on the FTS5 index.
func (idx *Index) FTSEnabled() bool {
	return idx.fts
}

// Close closes the index database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// SetLoader installs the authoritative reloader used for stale entries.
func (idx *Index) SetLoader(l Loader) {
	idx.loader = l
}

// Reset wipes all index contents. Used when the dataset root changes or a
// full rebuild is requested.
func (idx *Index) Reset(ctx context.Context) error {
	done := metrics.ObserveQuery("rebuild")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := idx.db.ExecContext(ctx, `
		DELETE FROM item_tags;
		DELETE FROM tags;
		DELETE FROM items;
	`)
	done(err)
	return err
}

// OnItemChanged is the Store change hook: nil old means a new item, nil new
// means a removal. Index updates are O(|old tags| + |new tags|).
func (idx *Index) OnItemChanged(old, new *dataset.Item) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var err error
	if new == nil {
		if old == nil {
			return
		}
		err = idx.RemoveItem(ctx, old.ID)
	} else {
		err = idx.UpsertItem(ctx, new)
	}
	if err != nil {
		logging.Error("Index update failed for %s: %v", changeID(old, new), err)
	}
}

func changeID(old, new *dataset.Item) string {
	if new != nil {
		return new.ID
	}
	return old.ID
}

// UpsertItem inserts or replaces one item row and its tag associations.
func (idx *Index) UpsertItem(ctx context.Context, it *dataset.Item) error {
	done := metrics.ObserveQuery("upsert_item")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertItemTx(ctx, tx, it); err != nil {
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

func upsertItemTx(ctx context.Context, tx *sql.Tx, it *dataset.Item) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO items (id, image_path, caption, image_size, mod_time, indexed_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			image_path = excluded.image_path,
			caption = excluded.caption,
			image_size = excluded.image_size,
			mod_time = excluded.mod_time,
			indexed_at = strftime('%s', 'now')
	`, it.ID, it.ImagePath, it.Caption, it.ImageSize, it.ModTime.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE item_id = ?", it.ID); err != nil {
		return fmt.Errorf("failed to clear item tags: %w", err)
	}

	for pos, tag := range it.Tags {
		var tagID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ? COLLATE NOCASE", tag).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			result, createErr := tx.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", tag)
			if createErr != nil {
				return fmt.Errorf("failed to create tag: %w", createErr)
			}
			tagID, _ = result.LastInsertId()
		} else if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO item_tags (item_id, tag_id, pos) VALUES (?, ?, ?)",
			it.ID, tagID, pos,
		); err != nil {
			return fmt.Errorf("failed to associate tag: %w", err)
		}
	}

	// Tags that lost their last item disappear from tag listings.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM item_tags)
	`); err != nil {
		return fmt.Errorf("failed to prune unused tags: %w", err)
	}

	return nil
}

// RemoveItem drops one item and its tag associations.
func (idx *Index) RemoveItem(ctx context.Context, id string) error {
	done := metrics.ObserveQuery("remove_item")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE item_id = ?", id); err != nil {
		done(err)
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
		done(err)
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM item_tags)
	`); err != nil {
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

// Rebuild replaces the whole index from a dataset snapshot in one
// transaction. Used by the scanner after a full scan.
func (idx *Index) Rebuild(ctx context.Context, items []*dataset.Item) error {
	done := metrics.ObserveQuery("rebuild")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{"DELETE FROM item_tags", "DELETE FROM tags", "DELETE FROM items"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			done(err)
			return err
		}
	}

	for _, it := range items {
		if err := upsertItemTx(ctx, tx, it); err != nil {
			done(err)
			return fmt.Errorf("failed to index %s: %w", it.ID, err)
		}
	}

	err = tx.Commit()
	done(err)
	return err
}

// MarkStale flags items whose index entries may no longer match disk. The
// entries are reconciled through the loader before the next query runs.
func (idx *Index) MarkStale(ids ...string) {
	idx.staleMu.Lock()
	defer idx.staleMu.Unlock()
	for _, id := range ids {
		idx.stale[id] = struct{}{}
	}
}

// refreshStale reconciles all stale entries. Runs at query entry, before the
// query itself takes the read lock, so a query never sees a half-updated
// index for an item known to have drifted.
func (idx *Index) refreshStale(ctx context.Context) {
	idx.staleMu.Lock()
	if len(idx.stale) == 0 {
		idx.staleMu.Unlock()
		return
	}
	pending := make([]string, 0, len(idx.stale))
	for id := range idx.stale {
		pending = append(pending, id)
	}
	idx.stale = make(map[string]struct{})
	idx.staleMu.Unlock()

	for _, id := range pending {
		metrics.IndexStaleRefreshes.Inc()
		if idx.loader == nil {
			continue
		}
		it, err := idx.loader(id)
		switch {
		case errors.Is(err, dataset.ErrNotFound):
			if remErr := idx.RemoveItem(ctx, id); remErr != nil {
				logging.Error("Failed to drop stale index entry %s: %v", id, remErr)
			}
		case err != nil:
			logging.Warn("Failed to refresh stale item %s: %v", id, err)
			// Leave it marked so the next query tries again.
			idx.MarkStale(id)
		default:
			if upErr := idx.UpsertItem(ctx, it); upErr != nil {
				logging.Error("Failed to re-index stale item %s: %v", id, upErr)
			}
		}
	}
}

// UpdateGauges refreshes the exported item/tag count gauges.
func (idx *Index) UpdateGauges(ctx context.Context) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var items, tags int
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&items); err == nil {
		metrics.IndexItemsTotal.Set(float64(items))
	}
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&tags); err == nil {
		metrics.IndexTagsTotal.Set(float64(tags))
	}
}
