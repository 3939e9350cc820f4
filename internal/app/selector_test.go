package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// fakeManifest implements domain.Manifest with canned tracks and records
// the language lists it was asked for.
type fakeManifest struct {
	video          *domain.Track
	audios         []*domain.Track
	texts          []*domain.Track
	pssh           []byte
	requestedAudio []string
	requestedText  []string
}

func (m *fakeManifest) VideoTrack(height int) *domain.Track { return m.video }

func (m *fakeManifest) AudioTracks(languages []string) []*domain.Track {
	m.requestedAudio = languages
	if len(languages) == 0 {
		return m.audios
	}
	var matched []*domain.Track
	for _, t := range m.audios {
		for _, lang := range languages {
			if t.Language == lang {
				matched = append(matched, t)
				break
			}
		}
	}
	return matched
}

func (m *fakeManifest) SubtitleTracks(languages []string) []*domain.Track {
	m.requestedText = languages
	return m.texts
}

func (m *fakeManifest) ProtectionHeader() []byte { return m.pssh }

func testManifest() *fakeManifest {
	return &fakeManifest{
		video: &domain.Track{Type: domain.TrackVideo, ID: "v0", Width: 1920},
		audios: []*domain.Track{
			{Type: domain.TrackAudio, ID: "a0", Language: "ja"},
			{Type: domain.TrackAudio, ID: "a1", Language: "en"},
			{Type: domain.TrackAudio, ID: "a2", Language: "de"},
		},
		texts: []*domain.Track{
			{Type: domain.TrackText, ID: "t0", Language: "en"},
		},
	}
}

func TestSelectOrdering(t *testing.T) {
	selector := NewTrackSelector(zap.NewNop())

	tracks, height, err := selector.Select(testManifest(), domain.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1080, height)

	require.Len(t, tracks, 5)
	assert.Equal(t, domain.TrackVideo, tracks[0].Type)
	assert.Equal(t, "a0", tracks[1].ID)
	assert.Equal(t, "a1", tracks[2].ID)
	assert.Equal(t, "a2", tracks[3].ID)
	assert.Equal(t, domain.TrackText, tracks[4].Type)
}

func TestSelectNoVideoTrack(t *testing.T) {
	selector := NewTrackSelector(zap.NewNop())
	manifest := testManifest()
	manifest.video = nil

	_, _, err := selector.Select(manifest, domain.DefaultOptions())
	assert.ErrorIs(t, err, domain.ErrNoVideoTrack)
}

func TestSelectLanguageFilter(t *testing.T) {
	selector := NewTrackSelector(zap.NewNop())
	manifest := testManifest()

	opts := domain.DefaultOptions()
	opts.AudioLanguages = []string{"ja", "de"}

	tracks, _, err := selector.Select(manifest, opts)
	require.NoError(t, err)

	// The requested languages are passed through to the manifest layer and
	// only matching audio tracks come back, in manifest order.
	assert.Equal(t, []string{"ja", "de"}, manifest.requestedAudio)
	var audioIDs []string
	for _, track := range tracks {
		if track.Type == domain.TrackAudio {
			audioIDs = append(audioIDs, track.ID)
		}
	}
	assert.Equal(t, []string{"a0", "a2"}, audioIDs)
}

func TestSelectUnknownWidthFallsBackToRequestedHeight(t *testing.T) {
	selector := NewTrackSelector(zap.NewNop())
	manifest := testManifest()
	manifest.video.Width = 1444

	opts := domain.DefaultOptions()
	opts.VideoHeight = 720

	_, height, err := selector.Select(manifest, opts)
	require.NoError(t, err)
	assert.Equal(t, 720, height)
}

func TestFilterTracks(t *testing.T) {
	tracks := []*domain.Track{
		{Type: domain.TrackVideo, ID: "v"},
		{Type: domain.TrackAudio, ID: "a"},
		{Type: domain.TrackText, ID: "t"},
	}

	tests := []struct {
		name        string
		skipV       bool
		skipA       bool
		skipS       bool
		expectedIDs []string
	}{
		{"keep all", false, false, false, []string{"v", "a", "t"}},
		{"skip video", true, false, false, []string{"a", "t"}},
		{"skip audio", false, true, false, []string{"v", "t"}},
		{"skip subtitles", false, false, true, []string{"v", "a"}},
		{"skip everything", true, true, true, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := FilterTracks(tracks, tt.skipV, tt.skipA, tt.skipS)
			ids := make([]string, 0, len(kept))
			for _, track := range kept {
				ids = append(ids, track.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}
