package domain

import (
	"encoding/json"
	"fmt"
)

// Movie identifies a single feature title.
type Movie struct {
	Title string `json:"title"`
}

// Show identifies an episodic title.
type Show struct {
	Title string `json:"title"`
}

// Season carries the season number when the title is episodic. Specials may
// omit it entirely.
type Season struct {
	Number int `json:"number"`
}

// Episode carries the episode number and optional display title.
type Episode struct {
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// SubtitleRef points at one sidecar subtitle file fetched by plain HTTP GET,
// outside the segmented download path.
type SubtitleRef struct {
	URL      string `json:"url"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

// DrmConfig describes the license server endpoint for one title. Params, when
// set, cause the license request to be wrapped in a JSON envelope carrying
// the raw request as base64 alongside the extra fields.
type DrmConfig struct {
	Server  string                 `json:"server"`
	Headers map[string]string      `json:"headers,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// DownloadConfig is the unit of work a provider hands to the pipeline:
// everything needed to turn one title into a muxed file. Exactly one of
// Movie or Show must be set.
type DownloadConfig struct {
	Manifest  []byte        `json:"manifest"`
	Subtitles []SubtitleRef `json:"subtitles,omitempty"`
	DRM       *DrmConfig    `json:"drm,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Movie     *Movie        `json:"movie,omitempty"`
	Show      *Show         `json:"show,omitempty"`
	Season    *Season       `json:"season,omitempty"`
	Episode   *Episode      `json:"episode,omitempty"`
	AudioType string        `json:"audio_type,omitempty"`
}

// Validate checks the movie/show invariant.
func (c *DownloadConfig) Validate() error {
	if c.Movie == nil && c.Show == nil {
		return fmt.Errorf("download config needs either a movie or a show")
	}
	if c.Movie != nil && c.Show != nil {
		return fmt.Errorf("download config cannot carry both a movie and a show")
	}
	if c.Movie != nil && c.Movie.Title == "" {
		return fmt.Errorf("movie title is empty")
	}
	if c.Show != nil && c.Show.Title == "" {
		return fmt.Errorf("show title is empty")
	}
	if len(c.Manifest) == 0 {
		return fmt.Errorf("download config has no manifest")
	}
	return nil
}

// Title returns the movie or show title, whichever is present.
func (c *DownloadConfig) Title() string {
	if c.Movie != nil {
		return c.Movie.Title
	}
	if c.Show != nil {
		return c.Show.Title
	}
	return ""
}

// IsEpisodic reports whether the config describes episodic content.
func (c *DownloadConfig) IsEpisodic() bool {
	return c.Show != nil
}

// ParseDownloadConfig decodes a serialized DownloadConfig and validates it.
func ParseDownloadConfig(data []byte) (*DownloadConfig, error) {
	var cfg DownloadConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode download config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
