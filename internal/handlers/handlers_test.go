package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/events"
	"dataset-studio/internal/index"
	"dataset-studio/internal/scanner"
	"dataset-studio/internal/session"
	"dataset-studio/internal/thumbs"

	"github.com/gorilla/mux"
)

// testEnv wires up the full handler stack over a temp dataset directory,
// with the initial scan already completed.
type testEnv struct {
	store  *dataset.Store
	idx    *index.Index
	hub    *events.Hub
	router *mux.Router
}

func newTestEnv(t *testing.T, files map[string]string, render thumbs.RenderFunc) *testEnv {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store, err := dataset.Open(root, dataset.DefaultConvention())
	if err != nil {
		t.Fatalf("dataset.Open: %v", err)
	}

	idx, err := index.New(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	idx.SetLoader(store.Load)

	hub := events.NewHub()
	t.Cleanup(hub.Stop)

	store.SetOnChange(func(old, new *dataset.Item) {
		idx.OnItemChanged(old, new)
	})

	sessions := session.NewManager(store, 10)
	cache := thumbs.NewCache(1<<20, render)
	sc := scanner.New(store, idx, hub, time.Hour)
	if err := sc.FullScan(context.Background()); err != nil {
		t.Fatalf("FullScan: %v", err)
	}

	h := New(store, idx, sessions, cache, sc, hub)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadyCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.CreateItem).Methods("POST")
	api.HandleFunc("/items/{id:.+}/image", h.GetImage).Methods("GET")
	api.HandleFunc("/items/{id:.+}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/items/{id:.+}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id:.+}", h.DeleteItem).Methods("DELETE")
	api.HandleFunc("/edit", h.ApplyEdit).Methods("POST")
	api.HandleFunc("/edit/undo", h.Undo).Methods("POST")
	api.HandleFunc("/edit/redo", h.Redo).Methods("POST")
	api.HandleFunc("/bulk", h.BulkApply).Methods("POST")
	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/resync", h.Resync).Methods("POST")

	return &testEnv{store: store, idx: idx, hub: hub, router: r}
}

// do runs one request through the router. body may be nil or any
// JSON-marshalable value; sessionID sets the edit-session header when set.
func (env *testEnv) do(t *testing.T, method, path string, body interface{}, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func basicDataset() map[string]string {
	return map[string]string{
		"cat.jpg":      "imgbytes",
		"cat.txt":      "cat, whiskers\na cat on a sofa",
		"dog.jpg":      "imgbytes",
		"dog.txt":      "dog\na dog",
		"sub/bird.png": "imgbytes",
		"sub/bird.txt": "bird, outdoor\n",
	}
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/api/items", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var page index.Page
	decodeBody(t, rec, &page)
	if page.TotalItems != 3 {
		t.Fatalf("TotalItems = %d, want 3", page.TotalItems)
	}
	if page.Items[0].ID != "cat.jpg" {
		t.Errorf("first item = %s, items must list in id order", page.Items[0].ID)
	}
	if got := page.Items[0].ThumbnailURL; got != "/api/items/cat.jpg/thumbnail" {
		t.Errorf("thumbnail url = %q", got)
	}
}

func TestListItemsTagFilter(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "single tag", query: "tags=cat", want: []string{"cat.jpg"}},
		{name: "or mode", query: "tags=cat,dog&mode=or", want: []string{"cat.jpg", "dog.jpg"}},
		{name: "and mode no match", query: "tags=cat,dog&mode=and", want: []string{}},
		{name: "caption search", query: "caption=sofa", want: []string{"cat.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "GET", "/api/items?"+tt.query, nil, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var page index.Page
			decodeBody(t, rec, &page)
			got := make([]string, 0, len(page.Items))
			for _, it := range page.Items {
				got = append(got, it.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListItemsBadQuery(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, query := range []string{"mode=xor", "limit=-1", "limit=three"} {
		rec := env.do(t, "GET", "/api/items?"+query, nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/api/items/sub/bird.png", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var it dataset.Item
	decodeBody(t, rec, &it)
	if it.ID != "sub/bird.png" {
		t.Errorf("id = %q", it.ID)
	}
	if !reflect.DeepEqual(it.Tags, []string{"bird", "outdoor"}) {
		t.Errorf("tags = %v", it.Tags)
	}
}

func TestGetItemErrors(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	if rec := env.do(t, "GET", "/api/items/nope.jpg", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown item: status = %d, want 404", rec.Code)
	}
	// Backslash ids normalize to slash paths; this one escapes the root.
	if rec := env.do(t, "GET", "/api/items/..%5Cescape.jpg", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("escaping id: status = %d, want 400", rec.Code)
	}
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	// Simulate a file dropped into the directory after the scan.
	abs := filepath.Join(env.store.Root(), "new.jpg")
	if err := os.WriteFile(abs, []byte("imgbytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	body := CreateItemRequest{ID: "new.jpg", Caption: "brand new", Tags: []string{"fresh"}}
	rec := env.do(t, "POST", "/api/items", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var it dataset.Item
	decodeBody(t, rec, &it)
	if it.Caption != "brand new" {
		t.Errorf("caption = %q", it.Caption)
	}

	// The new item is immediately queryable.
	list := env.do(t, "GET", "/api/items?tags=fresh", nil, "")
	var page index.Page
	decodeBody(t, list, &page)
	if len(page.Items) != 1 || page.Items[0].ID != "new.jpg" {
		t.Errorf("index did not pick up the created item: %+v", page.Items)
	}

	// Creating it again conflicts.
	if rec := env.do(t, "POST", "/api/items", body, ""); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create: status = %d, want 409", rec.Code)
	}
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		body CreateItemRequest
		want int
	}{
		{name: "missing id", body: CreateItemRequest{Caption: "c"}, want: http.StatusBadRequest},
		{name: "bad tag", body: CreateItemRequest{ID: "a.jpg", Tags: []string{"has,comma"}}, want: http.StatusBadRequest},
		{name: "escaping id", body: CreateItemRequest{ID: "../a.jpg"}, want: http.StatusBadRequest},
		{name: "image not on disk", body: CreateItemRequest{ID: "ghost.jpg"}, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, "POST", "/api/items", tt.body, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestDeleteItem(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "DELETE", "/api/items/cat.jpg", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(env.store.Root(), "cat.jpg.deleted")); err != nil {
		t.Error("default delete should be soft (renamed with suffix)")
	}

	if rec := env.do(t, "GET", "/api/items/cat.jpg", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleted item still resolves: status = %d", rec.Code)
	}

	rec = env.do(t, "DELETE", "/api/items/dog.jpg?hard=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("hard delete: status = %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(env.store.Root(), "dog.jpg")); !os.IsNotExist(err) {
		t.Error("hard delete left the image on disk")
	}
}

func TestGetImage(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/api/items/cat.jpg/image", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "imgbytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGetThumbnail(t *testing.T) {
	var renderedPath string
	var renderedDim int
	render := func(path string, maxDim int) ([]byte, error) {
		renderedPath = path
		renderedDim = maxDim
		return []byte("thumb"), nil
	}
	env := newTestEnv(t, basicDataset(), render)

	rec := env.do(t, "GET", "/api/items/cat.jpg/thumbnail?size=128", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "thumb" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if renderedDim != 128 {
		t.Errorf("rendered dim = %d, want 128", renderedDim)
	}
	if filepath.Base(renderedPath) != "cat.jpg" {
		t.Errorf("rendered path = %q", renderedPath)
	}

	// Second request hits the cache; the render func must not run again.
	renderedPath = ""
	if rec := env.do(t, "GET", "/api/items/cat.jpg/thumbnail?size=128", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if renderedPath != "" {
		t.Error("cached thumbnail was re-rendered")
	}
}

func TestGetThumbnailErrors(t *testing.T) {
	render := func(path string, maxDim int) ([]byte, error) {
		return nil, fmt.Errorf("corrupt file")
	}
	env := newTestEnv(t, basicDataset(), render)

	if rec := env.do(t, "GET", "/api/items/cat.jpg/thumbnail?size=0", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("size=0: status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/items/cat.jpg/thumbnail?size=9999", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("size=9999: status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/items/nope.jpg/thumbnail", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown item: status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/items/cat.jpg/thumbnail", nil, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("render failure: status = %d, want 422", rec.Code)
	}
}

func TestApplyEdit(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	body := EditRequest{
		ID: "cat.jpg",
		Op: session.Operation{Kind: session.OpAddTags, Tags: []string{"sleeping"}},
	}
	rec := env.do(t, "POST", "/api/edit", body, "sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var it dataset.Item
	decodeBody(t, rec, &it)
	if !reflect.DeepEqual(it.Tags, []string{"cat", "whiskers", "sleeping"}) {
		t.Errorf("tags = %v", it.Tags)
	}

	// The edit reached the sidecar on disk.
	data, err := os.ReadFile(filepath.Join(env.store.Root(), "cat.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cat, whiskers, sleeping\na cat on a sofa" {
		t.Errorf("sidecar = %q", data)
	}

	// And the index followed via the change hook.
	list := env.do(t, "GET", "/api/items?tags=sleeping", nil, "")
	var page index.Page
	decodeBody(t, list, &page)
	if len(page.Items) != 1 {
		t.Errorf("index did not follow the edit: %+v", page.Items)
	}
}

func TestApplyEditValidation(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	// Missing session header.
	body := EditRequest{ID: "cat.jpg", Op: session.Operation{Kind: session.OpSetCaption}}
	if rec := env.do(t, "POST", "/api/edit", body, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("no session: status = %d, want 400", rec.Code)
	}

	tests := []struct {
		name string
		body EditRequest
		want int
	}{
		{
			name: "missing id",
			body: EditRequest{Op: session.Operation{Kind: session.OpSetCaption}},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown op kind",
			body: EditRequest{ID: "cat.jpg", Op: session.Operation{Kind: "explode"}},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown item",
			body: EditRequest{ID: "nope.jpg", Op: session.Operation{Kind: session.OpSetCaption, Caption: "x"}},
			want: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, "POST", "/api/edit", tt.body, "sess-1"); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUndoRedo(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	edit := EditRequest{
		ID: "cat.jpg",
		Op: session.Operation{Kind: session.OpSetCaption, Caption: "rewritten"},
	}
	if rec := env.do(t, "POST", "/api/edit", edit, "sess-1"); rec.Code != http.StatusOK {
		t.Fatalf("edit: status = %d", rec.Code)
	}

	rec := env.do(t, "POST", "/api/edit/undo", nil, "sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("undo: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res session.HistoryResult
	decodeBody(t, rec, &res)
	if len(res.Steps) != 1 || res.Steps[0].Status != "applied" {
		t.Fatalf("undo result = %+v", res)
	}

	get := env.do(t, "GET", "/api/items/cat.jpg", nil, "")
	var it dataset.Item
	decodeBody(t, get, &it)
	if it.Caption != "a cat on a sofa" {
		t.Errorf("caption after undo = %q", it.Caption)
	}

	if rec := env.do(t, "POST", "/api/edit/redo", nil, "sess-1"); rec.Code != http.StatusOK {
		t.Fatalf("redo: status = %d", rec.Code)
	}
	get = env.do(t, "GET", "/api/items/cat.jpg", nil, "")
	decodeBody(t, get, &it)
	if it.Caption != "rewritten" {
		t.Errorf("caption after redo = %q", it.Caption)
	}

	// Histories are per session: a different client has nothing to undo.
	if rec := env.do(t, "POST", "/api/edit/undo", nil, "sess-2"); rec.Code != http.StatusConflict {
		t.Errorf("foreign session undo: status = %d, want 409", rec.Code)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	if rec := env.do(t, "POST", "/api/edit/undo", nil, "sess-1"); rec.Code != http.StatusConflict {
		t.Errorf("undo: status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, "POST", "/api/edit/redo", nil, "sess-1"); rec.Code != http.StatusConflict {
		t.Errorf("redo: status = %d, want 409", rec.Code)
	}
}

func TestBulkApplyByIDs(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	body := BulkRequest{
		IDs: []string{"cat.jpg", "dog.jpg", "nope.jpg"},
		Op:  session.Operation{Kind: session.OpAddTags, Tags: []string{"reviewed"}},
	}
	rec := env.do(t, "POST", "/api/bulk", body, "sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res session.BulkResult
	decodeBody(t, rec, &res)
	if res.Applied != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 2 applied 1 failed", res)
	}

	// One undo reverts the whole run.
	if rec := env.do(t, "POST", "/api/edit/undo", nil, "sess-1"); rec.Code != http.StatusOK {
		t.Fatalf("undo: status = %d", rec.Code)
	}
	get := env.do(t, "GET", "/api/items/cat.jpg", nil, "")
	var it dataset.Item
	decodeBody(t, get, &it)
	if it.HasTag("reviewed") {
		t.Error("bulk undo did not revert the tag")
	}
}

func TestBulkApplyByTagQuery(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	body := BulkRequest{
		Tags: []string{"cat", "dog"},
		Mode: "or",
		Op:   session.Operation{Kind: session.OpRenameTag, From: "cat", To: "feline"},
	}
	rec := env.do(t, "POST", "/api/bulk", body, "sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res session.BulkResult
	decodeBody(t, rec, &res)
	// cat.jpg carries the tag, dog.jpg doesn't: one applied, one skipped.
	if res.Applied != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 applied 1 skipped", res)
	}

	get := env.do(t, "GET", "/api/items/cat.jpg", nil, "")
	var it dataset.Item
	decodeBody(t, get, &it)
	if !it.HasTag("feline") || it.HasTag("cat") {
		t.Errorf("tags after rename = %v", it.Tags)
	}
}

func TestBulkApplyValidation(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	op := session.Operation{Kind: session.OpAddTags, Tags: []string{"x"}}
	tests := []struct {
		name string
		body BulkRequest
	}{
		{name: "no selection", body: BulkRequest{Op: op}},
		{name: "ids and tags together", body: BulkRequest{IDs: []string{"a"}, Tags: []string{"b"}, Op: op}},
		{name: "bad mode", body: BulkRequest{Tags: []string{"cat"}, Mode: "xor", Op: op}},
		{name: "invalid op", body: BulkRequest{IDs: []string{"cat.jpg"}, Op: session.Operation{Kind: session.OpRenameTag}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, "POST", "/api/bulk", tt.body, "sess-1"); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBulkApplyEmptyTagMatch(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	body := BulkRequest{
		Tags: []string{"nosuchtag"},
		Op:   session.Operation{Kind: session.OpAddTags, Tags: []string{"x"}},
	}
	rec := env.do(t, "POST", "/api/bulk", body, "sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res session.BulkResult
	decodeBody(t, rec, &res)
	if res.Applied != 0 || len(res.Items) != 0 {
		t.Errorf("empty selection should be a no-op, got %+v", res)
	}
}

func TestGetAllTags(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/api/tags", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var tags []index.TagCount
	decodeBody(t, rec, &tags)
	counts := make(map[string]int, len(tags))
	for _, tc := range tags {
		counts[tc.Name] = tc.Count
	}
	want := map[string]int{"cat": 1, "whiskers": 1, "dog": 1, "bird": 1, "outdoor": 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("tag counts = %v, want %v", counts, want)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/api/stats", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats index.Stats
	decodeBody(t, rec, &stats)
	if stats.TotalItems != 3 || stats.TaggedItems != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.DistinctTags != 5 {
		t.Errorf("distinct tags = %d, want 5", stats.DistinctTags)
	}
}

func TestResyncEndpoint(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	// Drop a new pair in behind the scanner's back.
	root := env.store.Root()
	os.WriteFile(filepath.Join(root, "late.jpg"), []byte("imgbytes"), 0o644)
	os.WriteFile(filepath.Join(root, "late.txt"), []byte("late"), 0o644)

	rec := env.do(t, "POST", "/api/resync", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res dataset.ResyncResult
	decodeBody(t, rec, &res)
	if res.Added != 1 {
		t.Errorf("result = %+v, want 1 added", res)
	}

	if rec := env.do(t, "GET", "/api/items/late.jpg", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("adopted item not resolvable: status = %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, basicDataset(), nil)

	rec := env.do(t, "GET", "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health HealthResponse
	decodeBody(t, rec, &health)
	if health.Status != statusHealthy || !health.Ready {
		t.Errorf("health = %+v", health)
	}
	if health.ItemsSeen != 3 {
		t.Errorf("items seen = %d", health.ItemsSeen)
	}

	if rec := env.do(t, "GET", "/readyz", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("readyz: status = %d", rec.Code)
	}
}

func TestReadyBeforeInitialScan(t *testing.T) {
	root := t.TempDir()
	store, err := dataset.Open(root, dataset.DefaultConvention())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := index.New(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	sc := scanner.New(store, idx, nil, time.Hour)
	h := New(store, idx, session.NewManager(store, 10), thumbs.NewCache(1<<20, nil), sc, nil)

	rec := httptest.NewRecorder()
	h.ReadyCheck(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before the initial scan", rec.Code)
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, "GET", "/version", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info map[string]interface{}
	decodeBody(t, rec, &info)
	if _, ok := info["version"]; !ok {
		t.Errorf("version body = %v", info)
	}
}
