package domain

// Default filename templates, one for features and one for episodic content.
const (
	DefaultMovieTemplate   = "{title}.{audioType}.{quality}.{provider}.{format}.{codec}"
	DefaultEpisodeTemplate = "{title}.S{s}E{e}.{audioType}.{quality}.{provider}.{format}.{codec}"
)

// DefaultPartSize is the number of segment requests in flight per track.
const DefaultPartSize = 24

// Options are the user-facing knobs for one pipeline run.
type Options struct {
	VideoHeight       int      `json:"video_height,omitempty"`
	AudioLanguages    []string `json:"audio_languages,omitempty"`
	SubtitleLanguages []string `json:"subtitle_languages,omitempty"`
	SkipVideo         bool     `json:"skip_video,omitempty"`
	SkipAudio         bool     `json:"skip_audio,omitempty"`
	SkipSubtitles     bool     `json:"skip_subtitles,omitempty"`
	SkipMux           bool     `json:"skip_mux,omitempty"`
	PartSize          int      `json:"part_size,omitempty"`
	MovieTemplate     string   `json:"movie_template,omitempty"`
	EpisodeTemplate   string   `json:"episode_template,omitempty"`
	TrimBegin         string   `json:"trim_begin,omitempty"`
	TrimEnd           string   `json:"trim_end,omitempty"`
}

// DefaultOptions returns options with the stock templates and part size.
func DefaultOptions() Options {
	return Options{
		PartSize:        DefaultPartSize,
		MovieTemplate:   DefaultMovieTemplate,
		EpisodeTemplate: DefaultEpisodeTemplate,
	}
}

// WithDefaults fills unset fields with their defaults.
func (o Options) WithDefaults() Options {
	if o.PartSize <= 0 {
		o.PartSize = DefaultPartSize
	}
	if o.MovieTemplate == "" {
		o.MovieTemplate = DefaultMovieTemplate
	}
	if o.EpisodeTemplate == "" {
		o.EpisodeTemplate = DefaultEpisodeTemplate
	}
	return o
}
