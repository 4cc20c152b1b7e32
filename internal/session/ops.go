package session

import (
	"fmt"
	"strings"

	"dataset-studio/internal/dataset"
)

// OpKind identifies one edit operation type.
type OpKind string

const (
	OpSetCaption     OpKind = "setCaption"
	OpReplaceCaption OpKind = "replaceCaption"
	OpSetTags        OpKind = "setTags"
	OpAddTags        OpKind = "addTags"
	OpPrependTags    OpKind = "prependTags"
	OpRemoveTags     OpKind = "removeTags"
	OpRenameTag      OpKind = "renameTag"
)

// Operation is one declarative edit. Which fields matter depends on the kind:
// caption ops use Caption or Find/Replace, tag ops use Tags, renameTag uses
// From/To.
type Operation struct {
	Kind    OpKind   `json:"kind"`
	Caption string   `json:"caption,omitempty"`
	Find    string   `json:"find,omitempty"`
	Replace string   `json:"replace,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
}

// Validate rejects malformed operations before any item is touched.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpSetCaption:
		return nil
	case OpReplaceCaption:
		if op.Find == "" {
			return fmt.Errorf("replaceCaption requires a non-empty find string")
		}
		return nil
	case OpSetTags, OpAddTags, OpPrependTags, OpRemoveTags:
		for _, tag := range op.Tags {
			if err := dataset.ValidateTag(tag); err != nil {
				return err
			}
		}
		return nil
	case OpRenameTag:
		if err := dataset.ValidateTag(op.From); err != nil {
			return fmt.Errorf("invalid source tag: %w", err)
		}
		if err := dataset.ValidateTag(op.To); err != nil {
			return fmt.Errorf("invalid target tag: %w", err)
		}
		return nil
	case "":
		return fmt.Errorf("operation kind is required")
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// applyTo computes the item's new caption and tags under this operation,
// plus the inverse operation that undoes it. changed is false when the
// operation is a no-op for this item (e.g. renaming a tag it doesn't carry);
// no-ops are skipped, not written, and never enter the undo history.
func (op Operation) applyTo(it *dataset.Item) (caption string, tags []string, inverse Operation, changed bool) {
	caption = it.Caption
	tags = append(make([]string, 0, len(it.Tags)), it.Tags...)

	switch op.Kind {
	case OpSetCaption:
		if op.Caption == it.Caption {
			return caption, tags, Operation{}, false
		}
		return op.Caption, tags, Operation{Kind: OpSetCaption, Caption: it.Caption}, true

	case OpReplaceCaption:
		replaced := strings.ReplaceAll(it.Caption, op.Find, op.Replace)
		if replaced == it.Caption {
			return caption, tags, Operation{}, false
		}
		return replaced, tags, Operation{Kind: OpSetCaption, Caption: it.Caption}, true

	case OpSetTags:
		next := dataset.NormalizeTags(op.Tags)
		if tagsEqual(next, it.Tags) {
			return caption, tags, Operation{}, false
		}
		return caption, next, Operation{Kind: OpSetTags, Tags: append([]string(nil), it.Tags...)}, true

	case OpAddTags:
		added := []string{}
		next := tags
		for _, tag := range dataset.NormalizeTags(op.Tags) {
			if it.HasTag(tag) {
				continue
			}
			next = append(next, tag)
			added = append(added, tag)
		}
		if len(added) == 0 {
			return caption, tags, Operation{}, false
		}
		return caption, next, Operation{Kind: OpRemoveTags, Tags: added}, true

	case OpPrependTags:
		front := dataset.NormalizeTags(op.Tags)
		if len(front) == 0 {
			return caption, tags, Operation{}, false
		}
		next := append([]string(nil), front...)
		for _, tag := range it.Tags {
			if !containsFold(front, tag) {
				next = append(next, tag)
			}
		}
		if tagsEqual(next, it.Tags) {
			return caption, tags, Operation{}, false
		}
		return caption, next, Operation{Kind: OpSetTags, Tags: append([]string(nil), it.Tags...)}, true

	case OpRemoveTags:
		remove := dataset.NormalizeTags(op.Tags)
		next := make([]string, 0, len(it.Tags))
		for _, tag := range it.Tags {
			if !containsFold(remove, tag) {
				next = append(next, tag)
			}
		}
		if len(next) == len(it.Tags) {
			return caption, tags, Operation{}, false
		}
		return caption, next, Operation{Kind: OpSetTags, Tags: append([]string(nil), it.Tags...)}, true

	case OpRenameTag:
		if !it.HasTag(op.From) {
			return caption, tags, Operation{}, false
		}
		next := make([]string, 0, len(it.Tags))
		for _, tag := range it.Tags {
			if strings.EqualFold(tag, op.From) {
				// Renaming onto a tag the item already carries just drops
				// the old one; NormalizeTags in the store would collapse the
				// duplicate anyway, but doing it here keeps position intent.
				if containsFold(next, op.To) || hasOtherFold(it.Tags, op.To, op.From) {
					continue
				}
				next = append(next, op.To)
				continue
			}
			next = append(next, tag)
		}
		return caption, next, Operation{Kind: OpSetTags, Tags: append([]string(nil), it.Tags...)}, true
	}

	return caption, tags, Operation{}, false
}

func tagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsFold(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// hasOtherFold reports whether tags contains want when occurrences equal to
// skip (case-insensitively) are ignored.
func hasOtherFold(tags []string, want, skip string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, skip) {
			continue
		}
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
