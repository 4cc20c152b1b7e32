package index

import "time"

// MatchMode selects how a tag-set filter combines its tags.
type MatchMode string

const (
	// MatchAll requires every tag to be present (AND).
	MatchAll MatchMode = "and"
	// MatchAny requires at least one tag to be present (OR).
	MatchAny MatchMode = "or"
)

// ItemSummary is the listing row sent to clients: enough to render a grid
// cell without loading the full item.
type ItemSummary struct {
	ID           string    `json:"id"`
	ImagePath    string    `json:"imagePath"`
	Caption      string    `json:"caption"`
	Tags         []string  `json:"tags"`
	ImageSize    int64     `json:"imageSize"`
	ModTime      time.Time `json:"modTime"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// Filter describes a listing query. Zero values mean "no constraint".
type Filter struct {
	Tags    []string  `json:"tags,omitempty"`
	Mode    MatchMode `json:"mode,omitempty"`
	Caption string    `json:"caption,omitempty"`
	Cursor  string    `json:"cursor,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

// Page is one page of listing results. NextCursor is empty on the last page.
type Page struct {
	Items      []ItemSummary `json:"items"`
	TotalItems int           `json:"totalItems"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// TagCount is one entry of the tag catalog.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the indexed dataset.
type Stats struct {
	TotalItems    int       `json:"totalItems"`
	TaggedItems   int       `json:"taggedItems"`
	UntaggedItems int       `json:"untaggedItems"`
	DistinctTags  int       `json:"distinctTags"`
	LastIndexed   time.Time `json:"lastIndexed"`
}
