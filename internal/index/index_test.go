package index

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"dataset-studio/internal/dataset"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := idx.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return idx
}

func testItem(id, caption string, tags ...string) *dataset.Item {
	return &dataset.Item{
		ID:        id,
		ImagePath: id,
		Caption:   caption,
		Tags:      tags,
		ImageSize: 1024,
		ModTime:   time.Unix(1700000000, 0),
	}
}

func mustUpsert(t *testing.T, idx *Index, items ...*dataset.Item) {
	t.Helper()
	for _, it := range items {
		if err := idx.UpsertItem(context.Background(), it); err != nil {
			t.Fatalf("UpsertItem(%s) error = %v", it.ID, err)
		}
	}
}

func listIDs(p *Page) []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ID
	}
	return ids
}

func TestListUnfiltered(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("b.jpg", "a dog", "dog"),
		testItem("a.jpg", "a cat", "cat"),
		testItem("c.jpg", "both", "cat", "dog"),
	)

	page, err := idx.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", page.TotalItems)
	}
	want := []string{"a.jpg", "b.jpg", "c.jpg"}
	if got := listIDs(page); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if page.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", page.NextCursor)
	}
}

func TestListTagFilter(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "dog"),
		testItem("3.jpg", "", "cat", "dog"),
	)

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"any cat", Filter{Tags: []string{"cat"}, Mode: MatchAny}, []string{"1.jpg", "3.jpg"}},
		{"any cat or dog", Filter{Tags: []string{"cat", "dog"}, Mode: MatchAny}, []string{"1.jpg", "2.jpg", "3.jpg"}},
		{"all cat and dog", Filter{Tags: []string{"cat", "dog"}, Mode: MatchAll}, []string{"3.jpg"}},
		{"default mode is all", Filter{Tags: []string{"cat", "dog"}}, []string{"3.jpg"}},
		{"case insensitive", Filter{Tags: []string{"CAT"}, Mode: MatchAny}, []string{"1.jpg", "3.jpg"}},
		{"unknown tag", Filter{Tags: []string{"bird"}, Mode: MatchAny}, []string{}},
		{"all with case-variant duplicate", Filter{Tags: []string{"cat", "CAT"}, Mode: MatchAll}, []string{"1.jpg", "3.jpg"}},
		{"all with duplicate and second tag", Filter{Tags: []string{"cat", "CAT", "dog"}, Mode: MatchAll}, []string{"3.jpg"}},
		{"blank tags only", Filter{Tags: []string{" "}, Mode: MatchAny}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := idx.List(context.Background(), tt.f)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got := listIDs(page); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListCaptionSearch(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "a photo of a mountain lake"),
		testItem("2.jpg", "city skyline at night"),
		testItem("3.jpg", "mountain trail in fog"),
	)

	page, err := idx.List(context.Background(), Filter{Caption: "mountain"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"1.jpg", "3.jpg"}
	if got := listIDs(page); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}

	// Short needles bypass FTS and use LIKE.
	page, err = idx.List(context.Background(), Filter{Caption: "at"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want = []string{"2.jpg"}
	if got := listIDs(page); !reflect.DeepEqual(got, want) {
		t.Errorf("short needle ids = %v, want %v", got, want)
	}
}

// Drivers built without the fts5 module route every caption search through
// LIKE; results must match the FTS path.
func TestCaptionSearchLikeFallback(t *testing.T) {
	idx := newTestIndex(t)
	idx.fts = false
	mustUpsert(t, idx,
		testItem("1.jpg", "a photo of a mountain lake"),
		testItem("2.jpg", "city skyline at night"),
		testItem("3.jpg", "mountain trail in fog"),
		testItem("4.jpg", "100% cotton texture"),
	)

	tests := []struct {
		name   string
		needle string
		want   []string
	}{
		{"long needle", "mountain", []string{"1.jpg", "3.jpg"}},
		{"short needle", "at", []string{"2.jpg"}},
		{"wildcard characters are literal", "100%", []string{"4.jpg"}},
		{"no match", "ocean", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := idx.List(context.Background(), Filter{Caption: tt.needle})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got := listIDs(page); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("a.jpg", ""),
		testItem("b.jpg", ""),
		testItem("c.jpg", ""),
		testItem("d.jpg", ""),
		testItem("e.jpg", ""),
	)

	var got []string
	cursor := ""
	for {
		page, err := idx.List(context.Background(), Filter{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if page.TotalItems != 5 {
			t.Errorf("TotalItems = %d, want 5", page.TotalItems)
		}
		got = append(got, listIDs(page)...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	want := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("paged ids = %v, want %v", got, want)
	}
}

func TestTagOrderPreserved(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx, testItem("x.jpg", "", "zebra", "apple", "mango"))

	page, err := idx.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"zebra", "apple", "mango"}
	if !reflect.DeepEqual(page.Items[0].Tags, want) {
		t.Errorf("Tags = %v, want %v", page.Items[0].Tags, want)
	}
}

func TestQueryTags(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "dog"),
		testItem("3.jpg", "", "cat", "dog"),
	)

	ids, err := idx.QueryTags(context.Background(), []string{"cat"}, MatchAny)
	if err != nil {
		t.Fatalf("QueryTags() error = %v", err)
	}
	if want := []string{"1.jpg", "3.jpg"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	ids, err = idx.QueryTags(context.Background(), []string{"cat", "dog"}, MatchAll)
	if err != nil {
		t.Fatalf("QueryTags() error = %v", err)
	}
	if want := []string{"3.jpg"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	// Case-variant duplicates collapse to one tag under NOCASE; the
	// all-mode count must follow suit or nothing could ever match.
	ids, err = idx.QueryTags(context.Background(), []string{"cat", "Cat"}, MatchAll)
	if err != nil {
		t.Fatalf("QueryTags() error = %v", err)
	}
	if want := []string{"1.jpg", "3.jpg"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	ids, err = idx.QueryTags(context.Background(), nil, MatchAny)
	if err != nil {
		t.Fatalf("QueryTags() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("empty tag set returned %v", ids)
	}
}

func TestAllTagsCountsAndPruning(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "cat", "dog"),
	)

	tags, err := idx.AllTags(context.Background())
	if err != nil {
		t.Fatalf("AllTags() error = %v", err)
	}
	want := []TagCount{{Name: "cat", Count: 2}, {Name: "dog", Count: 1}}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("AllTags() = %v, want %v", tags, want)
	}

	// Retagging 2.jpg away from dog leaves dog with zero items; it must
	// vanish from the catalog.
	mustUpsert(t, idx, testItem("2.jpg", "", "cat"))
	tags, err = idx.AllTags(context.Background())
	if err != nil {
		t.Fatalf("AllTags() error = %v", err)
	}
	want = []TagCount{{Name: "cat", Count: 2}}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("after retag AllTags() = %v, want %v", tags, want)
	}
}

func TestRemoveItem(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "dog"),
	)

	if err := idx.RemoveItem(context.Background(), "1.jpg"); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}

	page, err := idx.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if want := []string{"2.jpg"}; !reflect.DeepEqual(listIDs(page), want) {
		t.Errorf("ids = %v, want %v", listIDs(page), want)
	}

	tags, err := idx.AllTags(context.Background())
	if err != nil {
		t.Fatalf("AllTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "dog" {
		t.Errorf("AllTags() = %v, want only dog", tags)
	}
}

func TestRebuildMatchesIncremental(t *testing.T) {
	items := []*dataset.Item{
		testItem("1.jpg", "first", "cat"),
		testItem("2.jpg", "second", "dog", "outdoor"),
		testItem("3.jpg", "third"),
	}

	incremental := newTestIndex(t)
	mustUpsert(t, incremental, items...)

	rebuilt := newTestIndex(t)
	mustUpsert(t, rebuilt, testItem("stale.jpg", "gone", "old"))
	if err := rebuilt.Rebuild(context.Background(), items); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	for name, idx := range map[string]*Index{"incremental": incremental, "rebuilt": rebuilt} {
		page, err := idx.List(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("%s List() error = %v", name, err)
		}
		if want := []string{"1.jpg", "2.jpg", "3.jpg"}; !reflect.DeepEqual(listIDs(page), want) {
			t.Errorf("%s ids = %v, want %v", name, listIDs(page), want)
		}
	}

	incTags, _ := incremental.AllTags(context.Background())
	rebTags, _ := rebuilt.AllTags(context.Background())
	if !reflect.DeepEqual(incTags, rebTags) {
		t.Errorf("tag catalogs differ: %v vs %v", incTags, rebTags)
	}
}

func TestStaleRefresh(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "dog"),
	)

	loaded := map[string]*dataset.Item{
		"1.jpg": testItem("1.jpg", "updated", "feline"),
	}
	idx.SetLoader(func(id string) (*dataset.Item, error) {
		if it, ok := loaded[id]; ok {
			return it, nil
		}
		return nil, dataset.ErrNotFound
	})

	// 1.jpg was retagged on disk; 2.jpg was deleted on disk.
	idx.MarkStale("1.jpg", "2.jpg")

	page, err := idx.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if want := []string{"1.jpg"}; !reflect.DeepEqual(listIDs(page), want) {
		t.Fatalf("ids = %v, want %v", listIDs(page), want)
	}
	if page.Items[0].Caption != "updated" {
		t.Errorf("Caption = %q, want %q", page.Items[0].Caption, "updated")
	}
	if want := []string{"feline"}; !reflect.DeepEqual(page.Items[0].Tags, want) {
		t.Errorf("Tags = %v, want %v", page.Items[0].Tags, want)
	}
}

func TestGetStats(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx,
		testItem("1.jpg", "", "cat"),
		testItem("2.jpg", "", "cat", "dog"),
		testItem("3.jpg", "untagged"),
	)

	stats, err := idx.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", stats.TotalItems)
	}
	if stats.TaggedItems != 2 {
		t.Errorf("TaggedItems = %d, want 2", stats.TaggedItems)
	}
	if stats.UntaggedItems != 1 {
		t.Errorf("UntaggedItems = %d, want 1", stats.UntaggedItems)
	}
	if stats.DistinctTags != 2 {
		t.Errorf("DistinctTags = %d, want 2", stats.DistinctTags)
	}
	if stats.LastIndexed.IsZero() {
		t.Error("LastIndexed is zero")
	}
}
