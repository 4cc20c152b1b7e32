package dataset

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"dataset-studio/internal/filesystem"
)

var (
	// ErrNotFound is returned when an item id or its files no longer resolve.
	ErrNotFound = errors.New("item not found")
	// ErrConflict is returned when a write loses the optimistic-concurrency
	// check against the file system (the sidecar changed since it was read).
	ErrConflict = errors.New("item changed on disk")
	// ErrExists is returned when creating an item that is already tracked.
	ErrExists = errors.New("item already exists")
)

// Fingerprint is a cheap change-detecting summary of a file's on-disk state.
// Size plus modification time is enough to catch external edits without
// hashing file contents on every check.
type Fingerprint struct {
	Size    int64
	ModTime int64 // unix nanoseconds
}

// IsZero reports whether the fingerprint describes a file that did not exist.
func (f Fingerprint) IsZero() bool {
	return f.Size == 0 && f.ModTime == 0
}

func (f Fingerprint) String() string {
	return strconv.FormatInt(f.Size, 10) + ":" + strconv.FormatInt(f.ModTime, 10)
}

// fingerprintOf stats a file and summarizes it. A missing file yields the
// zero fingerprint with no error; other stat failures are surfaced.
func fingerprintOf(absPath string) (Fingerprint, error) {
	info, err := filesystem.StatWithRetry(absPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return Fingerprint{}, nil
		}
		return Fingerprint{}, err
	}
	return Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// Item is one image plus its sidecar text. Caption and Tags are two
// independently edited views serialized into the same sidecar file; a write
// always carries both so neither view is silently lost.
type Item struct {
	ID          string    `json:"id"`
	ImagePath   string    `json:"imagePath"`
	SidecarPath string    `json:"sidecarPath"`
	Caption     string    `json:"caption"`
	Tags        []string  `json:"tags"`
	ImageSize   int64     `json:"imageSize"`
	ModTime     time.Time `json:"modTime"`

	// SidecarFP is the fingerprint of the sidecar as last read; a write must
	// present it to pass the conflict check. ImageFP keys the thumbnail cache.
	SidecarFP Fingerprint `json:"-"`
	ImageFP   Fingerprint `json:"-"`
}

// Clone returns a deep copy so callers can mutate freely.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := *it
	cp.Tags = append([]string(nil), it.Tags...)
	return &cp
}

// HasTag reports whether the item carries the tag, compared case-insensitively.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// CleanID validates and normalizes an externally supplied item id. Ids are
// slash-separated relative image paths; anything that could escape the
// dataset root is rejected before it reaches storage.
func CleanID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty item id")
	}
	id = strings.ReplaceAll(id, "\\", "/")
	if strings.HasPrefix(id, "/") {
		return "", fmt.Errorf("item id must be a relative path: %q", id)
	}
	cleaned := path.Clean(id)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("item id escapes dataset root: %q", id)
	}
	return cleaned, nil
}
