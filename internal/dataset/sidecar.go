package dataset

import (
	"fmt"
	"strings"
)

// Convention pins the sidecar text format. The training pipeline reads these
// files directly, so the format is configured once at startup and never
// changed mid-session: the first line holds the comma-separated tag list,
// everything after the first line break is the free-form caption.
type Convention struct {
	// Ext is the sidecar file extension, including the dot.
	Ext string
	// TrailingComma appends a comma after the last tag, which some taggers
	// emit and some trainers tolerate.
	TrailingComma bool
}

// DefaultConvention matches the kohya-style ".txt" comma-separated format.
func DefaultConvention() Convention {
	return Convention{Ext: ".txt"}
}

// SplitTags parses a comma-separated tag line, trimming whitespace and
// dropping empty entries.
func SplitTags(text string) []string {
	parts := strings.Split(text, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// JoinTags renders a tag list back into a sidecar tag line.
func JoinTags(tags []string, trailingComma bool) string {
	s := strings.Join(tags, ", ")
	if trailingComma && len(tags) > 0 {
		s += ","
	}
	return s
}

// NormalizeTags trims whitespace, drops empties, and collapses duplicates
// case-insensitively while preserving first-occurrence order and case.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ValidateTag rejects tags that cannot survive a round trip through the
// sidecar format: empty tags, commas (the separator) and line breaks (which
// would spill onto the caption line).
func ValidateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("tag must not be empty")
	}
	if strings.ContainsAny(tag, ",\n\r") {
		return fmt.Errorf("tag %q must not contain commas or line breaks", tag)
	}
	return nil
}

// Encode serializes both views of an item into sidecar bytes. The tag line is
// always present (possibly empty) so the caption never migrates onto line one.
func (c Convention) Encode(caption string, tags []string) []byte {
	var b strings.Builder
	b.WriteString(JoinTags(tags, c.TrailingComma))
	if caption != "" {
		b.WriteByte('\n')
		b.WriteString(caption)
	}
	return []byte(b.String())
}

// Decode splits sidecar bytes back into the tag list and caption. A file
// without a line break is a bare tag line (the original tagger output).
func (c Convention) Decode(data []byte) (caption string, tags []string) {
	text := string(data)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		caption = text[i+1:]
		text = text[:i]
	}
	return caption, SplitTags(text)
}

// SidecarPathFor derives the sidecar path for an image path by swapping the
// extension, mirroring how the training pipeline pairs the two files.
func (c Convention) SidecarPathFor(imagePath string) string {
	ext := extOf(imagePath)
	return imagePath[:len(imagePath)-len(ext)] + c.Ext
}

func extOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		switch p[i] {
		case '.':
			return p[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
