package app

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

var (
	dotRuns   = regexp.MustCompile(`\.{2,}`)
	spaceRuns = regexp.MustCompile(` {2,}`)
)

// Namer derives every filename of one pipeline run from the download config,
// the user templates, and the canonical video height established by track
// selection. Derivation is deterministic: same inputs, same names.
type Namer struct {
	cfg             *domain.DownloadConfig
	movieTemplate   string
	episodeTemplate string
	height          int
}

// NewNamer builds a namer for one title. height is the canonical pixel
// height derived from the selected video track's width.
func NewNamer(cfg *domain.DownloadConfig, opts domain.Options, height int) *Namer {
	return &Namer{
		cfg:             cfg,
		movieTemplate:   opts.MovieTemplate,
		episodeTemplate: opts.EpisodeTemplate,
		height:          height,
	}
}

// Base returns the base filename without any track-specific suffix, built
// from the movie or episode template depending on the config.
func (n *Namer) Base() string {
	template := n.episodeTemplate
	if n.cfg.Movie != nil {
		template = n.movieTemplate
	}

	s := template
	s = strings.ReplaceAll(s, "{title}", strings.ReplaceAll(n.cfg.Title(), " ", "."))
	s = strings.ReplaceAll(s, "{s}", paddedNumber(n.cfg.Season != nil, func() int { return n.cfg.Season.Number }))
	s = strings.ReplaceAll(s, "{e}", paddedNumber(n.cfg.Episode != nil, func() int { return n.cfg.Episode.Number }))
	if n.cfg.AudioType != "" {
		s = strings.ReplaceAll(s, "{audioType}.", strings.ToUpper(n.cfg.AudioType)+".")
	} else {
		// The trailing literal dot goes with the placeholder.
		s = strings.ReplaceAll(s, "{audioType}.", "")
	}
	s = strings.ReplaceAll(s, "{quality}", fmt.Sprintf("%dp", n.height))
	s = strings.ReplaceAll(s, "{provider}", providerOrUnd(n.cfg.Provider))
	s = strings.ReplaceAll(s, "{format}", "WEBRip")
	s = strings.ReplaceAll(s, "{codec}", "x264")
	return Normalize(s)
}

// TrackFile returns the filename for one track at one pipeline stage:
// <base>.<typeSegment>.<id>.<suffix>.<ext>, with empty parts dropped.
// Subtitle tracks pass "text.<language>" as their type segment.
func (n *Namer) TrackFile(typeSegment, id, suffix, ext string) string {
	var b strings.Builder
	b.WriteString(n.Base())
	b.WriteString(".")
	for _, part := range []string{typeSegment, id, suffix} {
		if part != "" {
			b.WriteString(part)
			b.WriteString(".")
		}
	}
	b.WriteString(ext)
	return b.String()
}

// MediaTrackFile names a video/audio track file for the given stage suffix
// ("enc", "dec", or empty).
func (n *Namer) MediaTrackFile(t *domain.Track, suffix string) string {
	return n.TrackFile(string(t.Type), t.ID, suffix, t.Extension())
}

// TextTrackFile names a subtitle track file.
func (n *Namer) TextTrackFile(t *domain.Track) string {
	return n.TrackFile(string(domain.TrackText)+"."+t.Language, t.ID, "", t.Extension())
}

// SubtitleSidecarFile names a directly fetched subtitle file by language.
func (n *Namer) SubtitleSidecarFile(ref domain.SubtitleRef) string {
	format := ref.Format
	if format == "" {
		format = domain.DefaultExtension(domain.TrackText)
	}
	return n.TrackFile("", "", ref.Language, format)
}

// OutputFile names the final muxed artifact.
func (n *Namer) OutputFile() string {
	return n.TrackFile("", "", "", "mkv")
}

// WorkDirName returns the per-title directory name:
// Title.With.Dots[.SNN][.AUDIOTYPE].<height>p.<provider>.WEBRip.x264
func (n *Namer) WorkDirName() string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(n.cfg.Title(), " ", "."))
	if n.cfg.Season != nil && n.cfg.Season.Number > 0 {
		fmt.Fprintf(&b, ".S%02d", n.cfg.Season.Number)
	}
	if n.cfg.AudioType != "" {
		b.WriteString("." + strings.ToUpper(n.cfg.AudioType))
	}
	fmt.Fprintf(&b, ".%dp", n.height)
	b.WriteString("." + providerOrUnd(n.cfg.Provider))
	b.WriteString(".WEBRip.x264")
	return Normalize(b.String())
}

// Normalize collapses runs of dots and spaces left behind by empty template
// placeholders. Idempotent: applying it twice yields the same string.
func Normalize(s string) string {
	s = dotRuns.ReplaceAllString(s, ".")
	s = spaceRuns.ReplaceAllString(s, " ")
	return s
}

func paddedNumber(present bool, number func() int) string {
	if !present || number() <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d", number())
}

func providerOrUnd(provider string) string {
	if provider == "" {
		return "UND"
	}
	return provider
}
