package dataset

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dataset-studio/internal/filesystem"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/mediatypes"
	"dataset-studio/internal/workers"
)

// DeletedSuffix marks soft-deleted files. The scanner skips them and the
// training pipeline never sees them, but the bytes stay recoverable on disk.
const DeletedSuffix = ".deleted"

// ChangeFunc observes every item mutation the Store performs or detects.
// old is nil for newly discovered items, new is nil for removals. Hooks run
// with the item's write lock held, so per-item ordering is guaranteed.
type ChangeFunc func(old, new *Item)

// Store reads and writes image+sidecar pairs under one dataset root. The file
// system is authoritative: the in-memory map is only the last-known state,
// revalidated against fingerprints on every load.
type Store struct {
	root string
	conv Convention

	mu    sync.RWMutex
	items map[string]*Item

	// Striped per-item write locks: mutations on the same item never
	// interleave, unrelated items proceed concurrently.
	locks [64]sync.Mutex

	onChange ChangeFunc
}

// Open validates the dataset root and returns an empty Store. Call Scan to
// populate it.
func Open(root string, conv Convention) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dataset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root is not a directory: %s", abs)
	}
	if conv.Ext == "" {
		conv = DefaultConvention()
	}
	return &Store{
		root:  abs,
		conv:  conv,
		items: make(map[string]*Item),
	}, nil
}

// Root returns the absolute dataset root path.
func (s *Store) Root() string { return s.root }

// Convention returns the pinned sidecar format.
func (s *Store) Convention() Convention { return s.conv }

// SetOnChange installs the mutation hook. Must be called before Scan.
func (s *Store) SetOnChange(fn ChangeFunc) { s.onChange = fn }

func (s *Store) notify(old, new *Item) {
	if s.onChange != nil {
		s.onChange(old, new)
	}
}

func (s *Store) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// absImage and absSidecar map a relative slash path to the file system.
func (s *Store) absPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Scan walks the dataset root and replaces the in-memory state wholesale.
// It does not fire change hooks; callers that need a diff use Resync.
func (s *Store) Scan(ctx context.Context) ([]*Item, error) {
	found := make(map[string]*Item)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, DeletedSuffix) {
			return nil
		}
		if !mediatypes.IsImage(strings.ToLower(filepath.Ext(name))) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)
		item, err := s.loadFromDisk(id)
		if err != nil {
			logging.Warn("Skipping unreadable item %s: %v", id, err)
			return nil
		}
		found[id] = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset scan failed: %w", err)
	}

	s.mu.Lock()
	s.items = found
	s.mu.Unlock()

	return s.Items(), nil
}

// loadFromDisk builds an Item from the current file contents. The sidecar is
// optional at this point; a missing one reads as empty tags and caption and
// is only materialized on first access.
func (s *Store) loadFromDisk(id string) (*Item, error) {
	imgAbs := s.absPath(id)
	info, err := filesystem.StatWithRetry(imgAbs, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	item := &Item{
		ID:          id,
		ImagePath:   id,
		SidecarPath: s.conv.SidecarPathFor(id),
		ImageSize:   info.Size(),
		ModTime:     info.ModTime(),
		ImageFP:     Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()},
	}

	scAbs := s.absPath(item.SidecarPath)
	data, err := filesystem.ReadFileWithRetry(scAbs, filesystem.DefaultRetryConfig())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read sidecar for %s: %w", id, err)
		}
		item.Tags = []string{}
		return item, nil
	}
	fp, err := fingerprintOf(scAbs)
	if err != nil {
		return nil, err
	}
	caption, tags := s.conv.Decode(data)
	item.Caption = caption
	item.Tags = NormalizeTags(tags)
	item.SidecarFP = fp
	return item, nil
}

// Load returns the current item, reloading from disk whenever the sidecar or
// image fingerprint no longer matches the cached one (external-edit
// detection). A missing sidecar is created empty on first access.
func (s *Store) Load(id string) (*Item, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(id)
}

func (s *Store) loadLocked(id string) (*Item, error) {
	s.mu.RLock()
	cached := s.items[id]
	s.mu.RUnlock()

	fresh, err := s.loadFromDisk(id)
	if err != nil {
		if cached != nil && errors.Is(err, ErrNotFound) {
			// Image vanished under us: drop the stale entry.
			s.forget(cached)
			s.notify(cached.Clone(), nil)
		}
		return nil, err
	}

	// First access with no sidecar on disk: materialize an empty one so the
	// training pipeline and external tools see a complete pair.
	if fresh.SidecarFP.IsZero() {
		scAbs := s.absPath(fresh.SidecarPath)
		if _, statErr := os.Stat(scAbs); os.IsNotExist(statErr) {
			if err := os.WriteFile(scAbs, nil, 0o644); err != nil {
				return nil, fmt.Errorf("failed to create sidecar for %s: %w", id, err)
			}
			fp, err := fingerprintOf(scAbs)
			if err != nil {
				return nil, err
			}
			fresh.SidecarFP = fp
		}
	}

	if cached == nil {
		s.remember(fresh)
		s.notify(nil, fresh.Clone())
	} else if cached.SidecarFP != fresh.SidecarFP || cached.ImageFP != fresh.ImageFP {
		logging.Debug("External change detected for %s, reloading", id)
		s.remember(fresh)
		s.notify(cached.Clone(), fresh.Clone())
	}

	return fresh.Clone(), nil
}

// Write persists a new caption and tag list for an item. expect is the
// sidecar fingerprint observed when the caller loaded the item; if the file
// changed in the meantime the write fails with ErrConflict and nothing is
// touched. The file is written whole (temp file plus rename), never partially.
func (s *Store) Write(id string, caption string, tags []string, expect Fingerprint) (*Item, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	old := s.items[id]
	s.mu.RUnlock()
	if old == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	scAbs := s.absPath(old.SidecarPath)
	current, err := fingerprintOf(scAbs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sidecar for %s: %w", id, err)
	}
	if current != expect {
		return nil, fmt.Errorf("%w: %s (expected %s, found %s)", ErrConflict, id, expect, current)
	}

	tags = NormalizeTags(tags)
	data := s.conv.Encode(caption, tags)
	if err := writeFileAtomic(scAbs, data); err != nil {
		return nil, fmt.Errorf("failed to write sidecar for %s: %w", id, err)
	}

	fp, err := fingerprintOf(scAbs)
	if err != nil {
		return nil, err
	}

	updated := old.Clone()
	updated.Caption = caption
	updated.Tags = tags
	updated.SidecarFP = fp

	s.remember(updated)
	s.notify(old.Clone(), updated.Clone())
	return updated.Clone(), nil
}

// Create registers a sidecar for an image file that exists on disk but is not
// yet tracked (for example one just dropped into the directory).
func (s *Store) Create(id string, caption string, tags []string) (*Item, error) {
	cleaned, err := CleanID(id)
	if err != nil {
		return nil, err
	}
	id = cleaned

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	_, tracked := s.items[id]
	s.mu.RUnlock()
	if tracked {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}

	item, err := s.loadFromDisk(id)
	if err != nil {
		return nil, err
	}

	tags = NormalizeTags(tags)
	scAbs := s.absPath(item.SidecarPath)
	if err := writeFileAtomic(scAbs, s.conv.Encode(caption, tags)); err != nil {
		return nil, fmt.Errorf("failed to write sidecar for %s: %w", id, err)
	}
	fp, err := fingerprintOf(scAbs)
	if err != nil {
		return nil, err
	}
	item.Caption = caption
	item.Tags = tags
	item.SidecarFP = fp

	s.remember(item)
	s.notify(nil, item.Clone())
	return item.Clone(), nil
}

// Delete removes an item. Soft deletion renames both files with a ".deleted"
// suffix (recoverable by hand); hard deletion unlinks them.
func (s *Store) Delete(id string, soft bool) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	old := s.items[id]
	s.mu.RUnlock()
	if old == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	imgAbs := s.absPath(old.ImagePath)
	scAbs := s.absPath(old.SidecarPath)

	if soft {
		if err := os.Rename(imgAbs, imgAbs+DeletedSuffix); err != nil {
			return fmt.Errorf("failed to soft-delete image for %s: %w", id, err)
		}
		if err := os.Rename(scAbs, scAbs+DeletedSuffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to soft-delete sidecar for %s: %w", id, err)
		}
	} else {
		logging.Warn("Permanently deleting item %s", id)
		if err := os.Remove(imgAbs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete image for %s: %w", id, err)
		}
		if err := os.Remove(scAbs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete sidecar for %s: %w", id, err)
		}
	}

	s.forget(old)
	s.notify(old.Clone(), nil)
	return nil
}

// ResyncResult summarizes one drift-reconciliation pass.
type ResyncResult struct {
	Added   int `json:"added"`
	Changed int `json:"changed"`
	Removed int `json:"removed"`
}

// Resync reconciles the in-memory state with the directory: newly appeared
// images are adopted, externally modified pairs reloaded, vanished ones
// dropped. Fingerprint checks for known items run on a small worker pool
// since they are stat-bound.
func (s *Store) Resync(ctx context.Context) (ResyncResult, error) {
	var res ResyncResult

	onDisk := make(map[string]struct{})
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), DeletedSuffix) {
			return nil
		}
		if !mediatypes.IsImage(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		onDisk[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("resync walk failed: %w", err)
	}

	s.mu.RLock()
	known := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		known = append(known, it)
	}
	s.mu.RUnlock()

	// Adopt new arrivals.
	for id := range onDisk {
		s.mu.RLock()
		_, tracked := s.items[id]
		s.mu.RUnlock()
		if tracked {
			continue
		}
		if _, err := s.Load(id); err != nil {
			logging.Warn("Failed to adopt new item %s: %v", id, err)
			continue
		}
		res.Added++
	}

	// Check known items for drift or removal on a small pool.
	type verdict struct {
		changed bool
		removed bool
	}
	verdicts := make([]verdict, len(known))
	sem := make(chan struct{}, workers.ForIO(16))
	var wg sync.WaitGroup
	for i, it := range known {
		if _, still := onDisk[it.ID]; !still {
			verdicts[i] = verdict{removed: true}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, it *Item) {
			defer wg.Done()
			defer func() { <-sem }()
			scFP, err1 := fingerprintOf(s.absPath(it.SidecarPath))
			imgFP, err2 := fingerprintOf(s.absPath(it.ImagePath))
			if err1 != nil || err2 != nil {
				verdicts[i] = verdict{changed: true}
				return
			}
			verdicts[i] = verdict{changed: scFP != it.SidecarFP || imgFP != it.ImageFP}
		}(i, it)
	}
	wg.Wait()

	for i, it := range known {
		switch {
		case verdicts[i].removed:
			s.mu.Lock()
			delete(s.items, it.ID)
			s.mu.Unlock()
			s.notify(it.Clone(), nil)
			res.Removed++
		case verdicts[i].changed:
			// Load reloads and fires the change hook itself.
			if _, err := s.Load(it.ID); err != nil {
				logging.Warn("Failed to reload drifted item %s: %v", it.ID, err)
			}
			res.Changed++
		}
	}

	return res, nil
}

// Items returns a snapshot of all tracked items ordered by id (relative
// path), the deterministic order every listing uses.
func (s *Store) Items() []*Item {
	s.mu.RLock()
	out := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AbsImagePath resolves an item's image path for readers (thumbnailer).
func (s *Store) AbsImagePath(it *Item) string {
	return s.absPath(it.ImagePath)
}

func (s *Store) remember(it *Item) {
	s.mu.Lock()
	s.items[it.ID] = it.Clone()
	s.mu.Unlock()
}

func (s *Store) forget(it *Item) {
	s.mu.Lock()
	delete(s.items, it.ID)
	s.mu.Unlock()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial sidecar.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sidecar-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
