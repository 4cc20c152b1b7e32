package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/mediatypes"
)

const (
	defaultDatasetDir = "/dataset"
	defaultSidecarExt = ".txt"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	root := os.Getenv("DATASET_DIR")
	if root == "" {
		root = defaultDatasetDir
	}
	if len(os.Args) > 2 {
		root = os.Args[2]
	}

	ext := os.Getenv("SIDECAR_EXT")
	if ext == "" {
		ext = defaultSidecarExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	conv := dataset.Convention{Ext: ext}

	rep, err := scanDataset(root, conv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "check":
		if !printCheck(rep) {
			os.Exit(1)
		}
	case "stats":
		printStats(rep)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: dataset-lint <command> [dir]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  check   Validate every image/sidecar pair, exit non-zero on errors")
	fmt.Fprintln(os.Stderr, "  stats   Print dataset summary statistics")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  DATASET_DIR   Dataset directory (default: /dataset)")
	fmt.Fprintln(os.Stderr, "  SIDECAR_EXT   Sidecar extension (default: .txt)")
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// problem is one finding tied to a dataset-relative path.
type problem struct {
	id     string
	detail string
}

// report aggregates everything a single dataset walk discovered.
type report struct {
	root  string
	items int

	missingSidecars []string
	orphanSidecars  []string
	invalidTags     []problem
	duplicateTags   []problem

	untagged    int
	uncaptioned int
	tagCounts   map[string]int
}

// scanDataset walks the dataset root once, pairing images with sidecars and
// validating every sidecar it can read.
func scanDataset(root string, conv dataset.Convention) (*report, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %s is not a directory", abs)
	}

	images := make(map[string]struct{})
	sidecars := make(map[string]struct{})

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), dataset.DeletedSuffix) {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)
		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch {
		case mediatypes.IsImage(ext):
			images[id] = struct{}{}
		case ext == conv.Ext:
			sidecars[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset walk failed: %w", err)
	}

	rep := &report{
		root:      abs,
		items:     len(images),
		tagCounts: make(map[string]int),
	}

	claimed := make(map[string]struct{})
	for id := range images {
		scID := conv.SidecarPathFor(id)
		if _, ok := sidecars[scID]; !ok {
			rep.missingSidecars = append(rep.missingSidecars, id)
			rep.untagged++
			rep.uncaptioned++
			continue
		}
		claimed[scID] = struct{}{}

		data, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(scID)))
		if err != nil {
			rep.invalidTags = append(rep.invalidTags, problem{id: scID, detail: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		caption, tags := conv.Decode(data)
		checkSidecar(rep, scID, caption, tags)
	}

	for id := range sidecars {
		if _, ok := claimed[id]; !ok {
			rep.orphanSidecars = append(rep.orphanSidecars, id)
		}
	}

	sort.Strings(rep.missingSidecars)
	sort.Strings(rep.orphanSidecars)
	sortProblems(rep.invalidTags)
	sortProblems(rep.duplicateTags)

	return rep, nil
}

// checkSidecar validates one decoded sidecar and folds it into the report.
func checkSidecar(rep *report, scID, caption string, tags []string) {
	normalized := dataset.NormalizeTags(tags)

	if len(normalized) < len(tags) {
		rep.duplicateTags = append(rep.duplicateTags, problem{
			id:     scID,
			detail: fmt.Sprintf("%d duplicate tag(s)", len(tags)-len(normalized)),
		})
	}

	for _, tag := range normalized {
		if err := dataset.ValidateTag(tag); err != nil {
			rep.invalidTags = append(rep.invalidTags, problem{id: scID, detail: err.Error()})
			continue
		}
		rep.tagCounts[strings.ToLower(tag)]++
	}

	if len(normalized) == 0 {
		rep.untagged++
	}
	if strings.TrimSpace(caption) == "" {
		rep.uncaptioned++
	}
}

func sortProblems(ps []problem) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].id < ps[j].id })
}

// errorCount returns the number of hard errors (findings that should fail a
// CI gate, as opposed to coverage statistics).
func (r *report) errorCount() int {
	return len(r.missingSidecars) + len(r.orphanSidecars) + len(r.invalidTags) + len(r.duplicateTags)
}

// printCheck reports every finding and returns true when the dataset is clean.
func printCheck(rep *report) bool {
	fmt.Printf("Checked %d items under %s\n\n", rep.items, rep.root)

	for _, id := range rep.missingSidecars {
		fmt.Printf("  MISSING    %s has no sidecar\n", id)
	}
	for _, id := range rep.orphanSidecars {
		fmt.Printf("  ORPHAN     %s has no matching image\n", id)
	}
	for _, p := range rep.invalidTags {
		fmt.Printf("  INVALID    %s: %s\n", p.id, p.detail)
	}
	for _, p := range rep.duplicateTags {
		fmt.Printf("  DUPLICATE  %s: %s\n", p.id, p.detail)
	}

	n := rep.errorCount()
	if n == 0 {
		fmt.Println("No problems found.")
		return true
	}
	fmt.Printf("\n%d problem(s) found.\n", n)
	return false
}

func printStats(rep *report) {
	fmt.Printf("Dataset: %s\n", rep.root)
	fmt.Printf("  Items:       %d\n", rep.items)
	fmt.Printf("  Tagged:      %d\n", rep.items-rep.untagged)
	fmt.Printf("  Untagged:    %d\n", rep.untagged)
	fmt.Printf("  Captioned:   %d\n", rep.items-rep.uncaptioned)
	fmt.Printf("  Distinct tags: %d\n", len(rep.tagCounts))

	if len(rep.tagCounts) == 0 {
		return
	}

	type tagCount struct {
		name  string
		count int
	}
	counts := make([]tagCount, 0, len(rep.tagCounts))
	for name, count := range rep.tagCounts {
		counts = append(counts, tagCount{name, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})

	limit := 10
	if len(counts) < limit {
		limit = len(counts)
	}
	fmt.Println("\n  Top tags:")
	for _, tc := range counts[:limit] {
		fmt.Printf("    %6d  %s\n", tc.count, tc.name)
	}
}
