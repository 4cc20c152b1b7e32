package session

import (
	"reflect"
	"testing"
	"time"

	"dataset-studio/internal/dataset"
)

func opTestItem(caption string, tags ...string) *dataset.Item {
	return &dataset.Item{
		ID:      "item.jpg",
		Caption: caption,
		Tags:    tags,
		ModTime: time.Unix(1700000000, 0),
	}
}

func TestOperationValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"set caption", Operation{Kind: OpSetCaption, Caption: "hi"}, false},
		{"empty caption is fine", Operation{Kind: OpSetCaption}, false},
		{"replace caption", Operation{Kind: OpReplaceCaption, Find: "a", Replace: "b"}, false},
		{"replace needs find", Operation{Kind: OpReplaceCaption, Replace: "b"}, true},
		{"add tags", Operation{Kind: OpAddTags, Tags: []string{"cat"}}, false},
		{"tag with comma", Operation{Kind: OpAddTags, Tags: []string{"a,b"}}, true},
		{"tag with newline", Operation{Kind: OpSetTags, Tags: []string{"a\nb"}}, true},
		{"blank tag", Operation{Kind: OpRemoveTags, Tags: []string{"  "}}, true},
		{"rename", Operation{Kind: OpRenameTag, From: "cat", To: "feline"}, false},
		{"rename empty target", Operation{Kind: OpRenameTag, From: "cat", To: ""}, true},
		{"missing kind", Operation{}, true},
		{"unknown kind", Operation{Kind: "explode"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyTo(t *testing.T) {
	tests := []struct {
		name        string
		item        *dataset.Item
		op          Operation
		wantCaption string
		wantTags    []string
		wantChanged bool
	}{
		{
			name:        "set caption",
			item:        opTestItem("old", "cat"),
			op:          Operation{Kind: OpSetCaption, Caption: "new"},
			wantCaption: "new", wantTags: []string{"cat"}, wantChanged: true,
		},
		{
			name:        "set caption no-op",
			item:        opTestItem("same"),
			op:          Operation{Kind: OpSetCaption, Caption: "same"},
			wantCaption: "same", wantTags: []string{}, wantChanged: false,
		},
		{
			name:        "replace caption",
			item:        opTestItem("a photo of a dog and a dog"),
			op:          Operation{Kind: OpReplaceCaption, Find: "dog", Replace: "cat"},
			wantCaption: "a photo of a cat and a cat", wantTags: []string{}, wantChanged: true,
		},
		{
			name:        "replace caption no match",
			item:        opTestItem("a photo"),
			op:          Operation{Kind: OpReplaceCaption, Find: "dog", Replace: "cat"},
			wantCaption: "a photo", wantTags: []string{}, wantChanged: false,
		},
		{
			name:        "set tags",
			item:        opTestItem("", "a", "b"),
			op:          Operation{Kind: OpSetTags, Tags: []string{"x", "y"}},
			wantCaption: "", wantTags: []string{"x", "y"}, wantChanged: true,
		},
		{
			name:        "add tags skips present",
			item:        opTestItem("", "cat"),
			op:          Operation{Kind: OpAddTags, Tags: []string{"CAT", "dog"}},
			wantCaption: "", wantTags: []string{"cat", "dog"}, wantChanged: true,
		},
		{
			name:        "add tags all present",
			item:        opTestItem("", "cat", "dog"),
			op:          Operation{Kind: OpAddTags, Tags: []string{"dog"}},
			wantCaption: "", wantTags: []string{"cat", "dog"}, wantChanged: false,
		},
		{
			name:        "prepend moves existing to front",
			item:        opTestItem("", "a", "quality", "b"),
			op:          Operation{Kind: OpPrependTags, Tags: []string{"quality", "new"}},
			wantCaption: "", wantTags: []string{"quality", "new", "a", "b"}, wantChanged: true,
		},
		{
			name:        "prepend already in place",
			item:        opTestItem("", "quality", "a"),
			op:          Operation{Kind: OpPrependTags, Tags: []string{"quality"}},
			wantCaption: "", wantTags: []string{"quality", "a"}, wantChanged: false,
		},
		{
			name:        "remove tags",
			item:        opTestItem("", "a", "b", "c"),
			op:          Operation{Kind: OpRemoveTags, Tags: []string{"B"}},
			wantCaption: "", wantTags: []string{"a", "c"}, wantChanged: true,
		},
		{
			name:        "remove absent tag",
			item:        opTestItem("", "a"),
			op:          Operation{Kind: OpRemoveTags, Tags: []string{"z"}},
			wantCaption: "", wantTags: []string{"a"}, wantChanged: false,
		},
		{
			name:        "rename keeps position",
			item:        opTestItem("", "a", "cat", "b"),
			op:          Operation{Kind: OpRenameTag, From: "cat", To: "feline"},
			wantCaption: "", wantTags: []string{"a", "feline", "b"}, wantChanged: true,
		},
		{
			name:        "rename absent tag",
			item:        opTestItem("", "a"),
			op:          Operation{Kind: OpRenameTag, From: "cat", To: "feline"},
			wantCaption: "", wantTags: []string{"a"}, wantChanged: false,
		},
		{
			name:        "rename onto existing tag merges",
			item:        opTestItem("", "cat", "feline", "b"),
			op:          Operation{Kind: OpRenameTag, From: "cat", To: "feline"},
			wantCaption: "", wantTags: []string{"feline", "b"}, wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caption, tags, _, changed := tt.op.applyTo(tt.item)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if caption != tt.wantCaption {
				t.Errorf("caption = %q, want %q", caption, tt.wantCaption)
			}
			if !reflect.DeepEqual(tags, tt.wantTags) {
				t.Errorf("tags = %v, want %v", tags, tt.wantTags)
			}
		})
	}
}

func TestApplyToInverseRoundTrips(t *testing.T) {
	ops := []Operation{
		{Kind: OpSetCaption, Caption: "replacement"},
		{Kind: OpReplaceCaption, Find: "dog", Replace: "cat"},
		{Kind: OpSetTags, Tags: []string{"x"}},
		{Kind: OpAddTags, Tags: []string{"new"}},
		{Kind: OpPrependTags, Tags: []string{"front"}},
		{Kind: OpRemoveTags, Tags: []string{"dog"}},
		{Kind: OpRenameTag, From: "dog", To: "hound"},
	}

	for _, op := range ops {
		t.Run(string(op.Kind), func(t *testing.T) {
			it := opTestItem("a dog outside", "dog", "outdoor")

			caption, tags, inverse, changed := op.applyTo(it)
			if !changed {
				t.Fatal("operation did not change the item")
			}

			edited := it.Clone()
			edited.Caption = caption
			edited.Tags = tags

			backCaption, backTags, _, _ := inverse.applyTo(edited)
			if backCaption != it.Caption {
				t.Errorf("caption after inverse = %q, want %q", backCaption, it.Caption)
			}
			if !reflect.DeepEqual(backTags, it.Tags) {
				t.Errorf("tags after inverse = %v, want %v", backTags, it.Tags)
			}
		})
	}
}
