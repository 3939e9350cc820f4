package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DownloadConfig
		wantErr bool
	}{
		{
			name: "valid movie",
			cfg: DownloadConfig{
				Manifest: []byte("#EXTM3U"),
				Movie:    &Movie{Title: "Foo Bar"},
			},
		},
		{
			name: "valid show without season or episode",
			cfg: DownloadConfig{
				Manifest: []byte("#EXTM3U"),
				Show:     &Show{Title: "My Show"},
			},
		},
		{
			name:    "neither movie nor show",
			cfg:     DownloadConfig{Manifest: []byte("#EXTM3U")},
			wantErr: true,
		},
		{
			name: "both movie and show",
			cfg: DownloadConfig{
				Manifest: []byte("#EXTM3U"),
				Movie:    &Movie{Title: "Foo"},
				Show:     &Show{Title: "Bar"},
			},
			wantErr: true,
		},
		{
			name: "empty movie title",
			cfg: DownloadConfig{
				Manifest: []byte("#EXTM3U"),
				Movie:    &Movie{},
			},
			wantErr: true,
		},
		{
			name:    "missing manifest",
			cfg:     DownloadConfig{Movie: &Movie{Title: "Foo"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDownloadConfig(t *testing.T) {
	data := []byte(`{
		"manifest": "I0VYVE0zVQ==",
		"provider": "CR",
		"show": {"title": "My Show"},
		"season": {"number": 2},
		"episode": {"number": 5, "title": "The One"},
		"audio_type": "dub",
		"subtitles": [{"url": "https://example.com/en.vtt", "language": "en", "format": "vtt"}],
		"drm": {"server": "https://license.example.com", "headers": {"Authorization": "Bearer x"}}
	}`)

	cfg, err := ParseDownloadConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "My Show", cfg.Title())
	assert.True(t, cfg.IsEpisodic())
	assert.Equal(t, 2, cfg.Season.Number)
	assert.Equal(t, 5, cfg.Episode.Number)
	assert.Equal(t, "dub", cfg.AudioType)
	require.Len(t, cfg.Subtitles, 1)
	assert.Equal(t, "en", cfg.Subtitles[0].Language)
	require.NotNil(t, cfg.DRM)
	assert.Equal(t, "https://license.example.com", cfg.DRM.Server)
	assert.Equal(t, []byte("#EXTM3U"), cfg.Manifest)
}

func TestParseDownloadConfigRejectsInvalid(t *testing.T) {
	_, err := ParseDownloadConfig([]byte(`{"manifest": "eA=="}`))
	assert.Error(t, err)

	_, err = ParseDownloadConfig([]byte(`not json`))
	assert.Error(t, err)
}
