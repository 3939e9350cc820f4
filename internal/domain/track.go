package domain

// TrackType discriminates the three kinds of media tracks a manifest can
// describe. Every Track carries exactly one.
type TrackType string

const (
	TrackVideo TrackType = "video"
	TrackAudio TrackType = "audio"
	TrackText  TrackType = "text"
)

// SegmentRef points at one media segment. Order within a track's segment
// list defines playback order; the download coordinator must reassemble
// segments in exactly this order.
type SegmentRef struct {
	URL string `json:"url"`
}

// Track is one selectable media stream parsed out of a manifest. Tracks are
// immutable once produced; a track is uniquely identified by (Type, ID)
// within a title.
type Track struct {
	Type     TrackType    `json:"type"`
	ID       string       `json:"id"`
	Language string       `json:"language,omitempty"`
	Label    string       `json:"label,omitempty"`
	Format   string       `json:"format,omitempty"` // container extension as declared by the manifest
	Width    int          `json:"width,omitempty"`
	Height   int          `json:"height,omitempty"`
	Quality  string       `json:"quality,omitempty"`
	HDR      bool         `json:"hdr,omitempty"`
	SizeMB   int          `json:"size_mb,omitempty"`
	KID      string       `json:"kid,omitempty"` // default key ID, when the manifest declares one
	Segments []SegmentRef `json:"segments"`
}

// SegmentURLs returns the track's segment URLs in playback order.
func (t *Track) SegmentURLs() []string {
	urls := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		urls[i] = s.URL
	}
	return urls
}

// Extension returns the container extension for the track: the manifest's
// declared format when present, otherwise a default derived from the type.
func (t *Track) Extension() string {
	if t.Format != "" {
		return t.Format
	}
	return DefaultExtension(t.Type)
}

// DefaultExtension maps a track type to its default container extension.
func DefaultExtension(t TrackType) string {
	switch t {
	case TrackText:
		return "vtt"
	case TrackAudio:
		return "m4a"
	default:
		return "mp4"
	}
}

// HeightForWidth derives the canonical pixel height label from a video
// track's encoded width. Returns 0 for widths outside the table.
func HeightForWidth(width int) int {
	switch width {
	case 7680:
		return 4320
	case 4096, 3840:
		return 2160
	case 1920:
		return 1080
	case 1280:
		return 720
	case 1024, 720:
		return 576
	case 854:
		return 480
	case 640:
		return 360
	default:
		return 0
	}
}
