package core

// MediaKind is the type of a downloadable asset.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
)

// Defaults applied by adapters when an upstream omits optional fields.
const (
	DefaultThumbnailURL = "https://picsum.photos/600/800"
	DefaultTitle        = "Instagram Media"
	DefaultAuthor       = "@instagram"
	DefaultQuality      = "HD"
)

// MediaItem is one downloadable asset. Values are never mutated after construction.
type MediaItem struct {
	Kind         MediaKind `json:"type"`
	SourceURL    string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail"`
	Quality      string    `json:"quality"`
}

// ResolvedMedia is the canonical result every provider adapter normalizes into.
// Items is never empty and PrimaryItem is always Items[0].
type ResolvedMedia struct {
	PrimaryItem  MediaItem   `json:"primaryItem"`
	Title        string      `json:"title"`
	AuthorHandle string      `json:"author"`
	Caption      string      `json:"caption"`
	Items        []MediaItem `json:"items"`
	IsCarousel   bool        `json:"isCarousel"`
	ItemCount    int         `json:"itemCount"`
	LikeCount    *int64      `json:"likeCount,omitempty"`
	CommentCount *int64      `json:"commentCount,omitempty"`
}

// NewResolvedMedia builds a ResolvedMedia from an ordered item list, deriving the
// primary item, carousel flag and count. It returns nil when items is empty.
func NewResolvedMedia(items []MediaItem, title, author, caption string) *ResolvedMedia {
	if len(items) == 0 {
		return nil
	}
	owned := make([]MediaItem, len(items))
	copy(owned, items)
	return &ResolvedMedia{
		PrimaryItem:  owned[0],
		Title:        title,
		AuthorHandle: author,
		Caption:      caption,
		Items:        owned,
		IsCarousel:   len(owned) > 1,
		ItemCount:    len(owned),
	}
}

// Clone returns a deep copy so cached values cannot be altered by callers.
func (m *ResolvedMedia) Clone() *ResolvedMedia {
	if m == nil {
		return nil
	}
	c := *m
	c.Items = make([]MediaItem, len(m.Items))
	copy(c.Items, m.Items)
	if m.LikeCount != nil {
		v := *m.LikeCount
		c.LikeCount = &v
	}
	if m.CommentCount != nil {
		v := *m.CommentCount
		c.CommentCount = &v
	}
	return &c
}

// Exchange is the diagnostic envelope of a single upstream call, returned by the
// admin test harness. API keys in RequestHeaders are masked.
type Exchange struct {
	ProviderID     string            `json:"provider"`
	ProviderName   string            `json:"apiName"`
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	RequestHeaders map[string]string `json:"requestHeaders"`
	StatusCode     int               `json:"status"`
	StatusText     string            `json:"statusText"`
	Headers        map[string]string `json:"headers"`
	Body           []byte            `json:"-"`
	DurationMs     int64             `json:"durationMs"`
}
