package app

import (
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// TrackSelector turns a parsed manifest into the ordered track list the
// pipeline fetches: [video, audio..., subtitles...], minus skipped types.
type TrackSelector struct {
	logger *zap.Logger
}

// NewTrackSelector creates a track selector.
func NewTrackSelector(logger *zap.Logger) *TrackSelector {
	return &TrackSelector{logger: logger}
}

// Select resolves tracks from the manifest and returns them together with
// the canonical height label derived from the chosen video track's width.
// A manifest without a resolvable video track is fatal: the quality label
// cannot be established without one.
func (s *TrackSelector) Select(manifest domain.Manifest, opts domain.Options) ([]*domain.Track, int, error) {
	video := manifest.VideoTrack(opts.VideoHeight)
	if video == nil {
		return nil, 0, domain.ErrNoVideoTrack
	}

	height := domain.HeightForWidth(video.Width)
	if height == 0 {
		// Width outside the lookup table; keep the requested label.
		height = opts.VideoHeight
		s.logger.Debug("No canonical height for video width",
			zap.Int("width", video.Width),
			zap.Int("fallback_height", height))
	}

	audios := manifest.AudioTracks(opts.AudioLanguages)
	subtitles := manifest.SubtitleTracks(opts.SubtitleLanguages)

	ordered := make([]*domain.Track, 0, 1+len(audios)+len(subtitles))
	ordered = append(ordered, video)
	ordered = append(ordered, audios...)
	ordered = append(ordered, subtitles...)

	return FilterTracks(ordered, opts.SkipVideo, opts.SkipAudio, opts.SkipSubtitles), height, nil
}

// FilterTracks drops tracks of skipped types, preserving relative order.
func FilterTracks(tracks []*domain.Track, skipVideo, skipAudio, skipSubtitles bool) []*domain.Track {
	kept := make([]*domain.Track, 0, len(tracks))
	for _, t := range tracks {
		switch t.Type {
		case domain.TrackVideo:
			if skipVideo {
				continue
			}
		case domain.TrackAudio:
			if skipAudio {
				continue
			}
		case domain.TrackText:
			if skipSubtitles {
				continue
			}
		}
		kept = append(kept, t)
	}
	return kept
}
