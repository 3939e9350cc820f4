package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeightForWidth(t *testing.T) {
	tests := []struct {
		width  int
		height int
	}{
		{7680, 4320},
		{4096, 2160},
		{3840, 2160},
		{1920, 1080},
		{1280, 720},
		{1024, 576},
		{720, 576},
		{854, 480},
		{640, 360},
		{1444, 0},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.height, HeightForWidth(tt.width), "width %d", tt.width)
	}
}

func TestTrackExtension(t *testing.T) {
	assert.Equal(t, "mp4", (&Track{Type: TrackVideo}).Extension())
	assert.Equal(t, "m4a", (&Track{Type: TrackAudio}).Extension())
	assert.Equal(t, "vtt", (&Track{Type: TrackText}).Extension())
	assert.Equal(t, "webm", (&Track{Type: TrackVideo, Format: "webm"}).Extension())
}

func TestSegmentURLs(t *testing.T) {
	track := &Track{Segments: []SegmentRef{
		{URL: "https://cdn.example.com/seg0.m4s"},
		{URL: "https://cdn.example.com/seg1.m4s"},
	}}
	assert.Equal(t, []string{
		"https://cdn.example.com/seg0.m4s",
		"https://cdn.example.com/seg1.m4s",
	}, track.SegmentURLs())
}
