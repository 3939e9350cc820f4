package infrastructure

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// MPDParser parses MPEG-DASH media presentation descriptions into the
// track model. Supports SegmentTemplate (number and timeline addressing)
// and SegmentList representations.
type MPDParser struct {
	logger *zap.Logger
}

// NewMPDParser creates a DASH manifest parser.
func NewMPDParser(logger *zap.Logger) *MPDParser {
	return &MPDParser{logger: logger}
}

type mpdRoot struct {
	XMLName                   xml.Name    `xml:"MPD"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"`
	BaseURL                   string      `xml:"BaseURL"`
	Periods                   []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	Duration       string              `xml:"duration,attr"`
	BaseURL        string              `xml:"BaseURL"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ContentType        string                 `xml:"contentType,attr"`
	MimeType           string                 `xml:"mimeType,attr"`
	Lang               string                 `xml:"lang,attr"`
	Label              string                 `xml:"label,attr"`
	BaseURL            string                 `xml:"BaseURL"`
	ContentProtections []mpdContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *mpdSegmentTemplate    `xml:"SegmentTemplate"`
	Representations    []mpdRepresentation    `xml:"Representation"`
}

type mpdContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
	Pssh        string `xml:"pssh"`
}

type mpdRepresentation struct {
	ID              string              `xml:"id,attr"`
	Bandwidth       int                 `xml:"bandwidth,attr"`
	Width           int                 `xml:"width,attr"`
	Height          int                 `xml:"height,attr"`
	Codecs          string              `xml:"codecs,attr"`
	BaseURL         string              `xml:"BaseURL"`
	SegmentTemplate *mpdSegmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *mpdSegmentList     `xml:"SegmentList"`
}

type mpdSegmentTemplate struct {
	Initialization string              `xml:"initialization,attr"`
	Media          string              `xml:"media,attr"`
	StartNumber    *int64              `xml:"startNumber,attr"`
	Duration       int64               `xml:"duration,attr"`
	Timescale      int64               `xml:"timescale,attr"`
	Timeline       *mpdSegmentTimeline `xml:"SegmentTimeline"`
}

type mpdSegmentTimeline struct {
	Segments []mpdTimelineSegment `xml:"S"`
}

type mpdTimelineSegment struct {
	T *int64 `xml:"t,attr"`
	D int64  `xml:"d,attr"`
	R int64  `xml:"r,attr"`
}

type mpdSegmentList struct {
	Initialization *mpdURLRef  `xml:"Initialization"`
	SegmentURLs    []mpdURLRef `xml:"SegmentURL"`
}

type mpdURLRef struct {
	SourceURL string `xml:"sourceURL,attr"`
	Media     string `xml:"media,attr"`
}

// dashManifest is the parsed track view over one MPD.
type dashManifest struct {
	videos []*domain.Track
	audios []*domain.Track
	texts  []*domain.Track
	pssh   []byte
}

// Parse decodes the MPD and expands every representation's segment
// addressing into explicit URL lists.
func (p *MPDParser) Parse(ctx context.Context, raw []byte) (domain.Manifest, error) {
	var root mpdRoot
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse MPD: %w", err)
	}
	if len(root.Periods) == 0 {
		return nil, fmt.Errorf("MPD has no periods")
	}

	manifest := &dashManifest{}
	durationSec := parseISODuration(root.MediaPresentationDuration)

	for _, period := range root.Periods {
		if period.Duration != "" {
			durationSec = parseISODuration(period.Duration)
		}
		for _, set := range period.AdaptationSets {
			trackType := adaptationTrackType(set)
			if trackType == "" {
				continue
			}

			kid := ""
			for _, cp := range set.ContentProtections {
				if cp.DefaultKID != "" && kid == "" {
					kid = strings.ToLower(cp.DefaultKID)
				}
				if cp.Pssh != "" && manifest.pssh == nil {
					if data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cp.Pssh)); err == nil {
						manifest.pssh = data
					}
				}
			}

			for _, rep := range set.Representations {
				base := resolveBase(root.BaseURL, period.BaseURL, set.BaseURL, rep.BaseURL)
				segments, err := expandSegments(set, rep, base, durationSec)
				if err != nil {
					p.logger.Warn("Skipping representation",
						zap.String("id", rep.ID),
						zap.Error(err))
					continue
				}

				track := &domain.Track{
					Type:     trackType,
					ID:       rep.ID,
					Language: set.Lang,
					Label:    adaptationLabel(set),
					Width:    rep.Width,
					Height:   rep.Height,
					KID:      kid,
					Segments: segments,
				}
				switch trackType {
				case domain.TrackVideo:
					manifest.videos = append(manifest.videos, track)
				case domain.TrackAudio:
					manifest.audios = append(manifest.audios, track)
				case domain.TrackText:
					manifest.texts = append(manifest.texts, track)
				}
			}
		}
	}

	if len(manifest.videos) == 0 && len(manifest.audios) == 0 && len(manifest.texts) == 0 {
		return nil, fmt.Errorf("MPD yielded no tracks")
	}

	p.logger.Debug("MPD parsed",
		zap.Int("video", len(manifest.videos)),
		zap.Int("audio", len(manifest.audios)),
		zap.Int("text", len(manifest.texts)),
		zap.Bool("protected", manifest.pssh != nil))
	return manifest, nil
}

func adaptationTrackType(set mpdAdaptationSet) domain.TrackType {
	contentType := set.ContentType
	if contentType == "" && set.MimeType != "" {
		contentType = strings.SplitN(set.MimeType, "/", 2)[0]
	}
	switch contentType {
	case "video":
		return domain.TrackVideo
	case "audio":
		return domain.TrackAudio
	case "text", "application":
		return domain.TrackText
	}
	return ""
}

func adaptationLabel(set mpdAdaptationSet) string {
	if set.Label != "" {
		return set.Label
	}
	return set.Lang
}

// resolveBase collapses the MPD's BaseURL hierarchy into one base, letting
// each deeper level override or extend the one above it.
func resolveBase(levels ...string) string {
	base := ""
	for _, level := range levels {
		level = strings.TrimSpace(level)
		if level == "" {
			continue
		}
		base = resolveURL(base, level)
	}
	return base
}

func resolveURL(base, ref string) string {
	if base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// expandSegments turns one representation's addressing scheme into the
// explicit, ordered segment URL list.
func expandSegments(set mpdAdaptationSet, rep mpdRepresentation, base string, durationSec float64) ([]domain.SegmentRef, error) {
	if rep.SegmentList != nil {
		return expandSegmentList(rep.SegmentList, base)
	}

	template := rep.SegmentTemplate
	if template == nil {
		template = set.SegmentTemplate
	}
	if template == nil {
		return nil, fmt.Errorf("representation %s has no segment addressing", rep.ID)
	}
	return expandSegmentTemplate(template, rep, base, durationSec)
}

func expandSegmentList(list *mpdSegmentList, base string) ([]domain.SegmentRef, error) {
	if len(list.SegmentURLs) == 0 {
		return nil, fmt.Errorf("segment list is empty")
	}
	var segments []domain.SegmentRef
	if list.Initialization != nil && list.Initialization.SourceURL != "" {
		segments = append(segments, domain.SegmentRef{URL: resolveURL(base, list.Initialization.SourceURL)})
	}
	for _, ref := range list.SegmentURLs {
		segments = append(segments, domain.SegmentRef{URL: resolveURL(base, ref.Media)})
	}
	return segments, nil
}

func expandSegmentTemplate(template *mpdSegmentTemplate, rep mpdRepresentation, base string, durationSec float64) ([]domain.SegmentRef, error) {
	if template.Media == "" {
		return nil, fmt.Errorf("segment template has no media pattern")
	}

	startNumber := int64(1)
	if template.StartNumber != nil {
		startNumber = *template.StartNumber
	}

	var segments []domain.SegmentRef
	if template.Initialization != "" {
		initURL := fillTemplate(template.Initialization, rep, 0, 0)
		segments = append(segments, domain.SegmentRef{URL: resolveURL(base, initURL)})
	}

	if template.Timeline != nil {
		number := startNumber
		currentTime := int64(0)
		for _, s := range template.Timeline.Segments {
			if s.T != nil {
				currentTime = *s.T
			}
			repeats := s.R + 1
			if repeats < 1 {
				repeats = 1
			}
			for r := int64(0); r < repeats; r++ {
				mediaURL := fillTemplate(template.Media, rep, number, currentTime)
				segments = append(segments, domain.SegmentRef{URL: resolveURL(base, mediaURL)})
				number++
				currentTime += s.D
			}
		}
		return segments, nil
	}

	if template.Duration <= 0 {
		return nil, fmt.Errorf("segment template has neither timeline nor duration")
	}
	timescale := template.Timescale
	if timescale <= 0 {
		timescale = 1
	}
	if durationSec <= 0 {
		return nil, fmt.Errorf("presentation duration unknown, cannot expand numbered segments")
	}

	segmentSeconds := float64(template.Duration) / float64(timescale)
	count := int64(durationSec / segmentSeconds)
	if float64(count)*segmentSeconds < durationSec {
		count++
	}
	for i := int64(0); i < count; i++ {
		mediaURL := fillTemplate(template.Media, rep, startNumber+i, 0)
		segments = append(segments, domain.SegmentRef{URL: resolveURL(base, mediaURL)})
	}
	return segments, nil
}

var templateVarPattern = regexp.MustCompile(`\$(RepresentationID|Bandwidth|Number|Time)(%0\d+d)?\$`)

// fillTemplate substitutes the DASH template identifiers, honoring the
// optional width format tag on Number and Time.
func fillTemplate(pattern string, rep mpdRepresentation, number, time int64) string {
	return templateVarPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		groups := templateVarPattern.FindStringSubmatch(match)
		format := groups[2]
		var value string
		switch groups[1] {
		case "RepresentationID":
			return rep.ID
		case "Bandwidth":
			value = strconv.Itoa(rep.Bandwidth)
		case "Number":
			value = strconv.FormatInt(number, 10)
		case "Time":
			value = strconv.FormatInt(time, 10)
		}
		if format != "" {
			n, _ := strconv.ParseInt(value, 10, 64)
			return fmt.Sprintf(format, n)
		}
		return value
	})
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:([\d.]+)S)?$`)

// parseISODuration converts an ISO 8601 duration (PT1H23M45.6S) to seconds.
// Returns 0 for anything it cannot parse.
func parseISODuration(value string) float64 {
	if value == "" {
		return 0
	}
	groups := isoDurationPattern.FindStringSubmatch(value)
	if groups == nil {
		return 0
	}
	days, _ := strconv.ParseFloat(zeroIfEmpty(groups[1]), 64)
	hours, _ := strconv.ParseFloat(zeroIfEmpty(groups[2]), 64)
	minutes, _ := strconv.ParseFloat(zeroIfEmpty(groups[3]), 64)
	seconds, _ := strconv.ParseFloat(zeroIfEmpty(groups[4]), 64)
	return days*86400 + hours*3600 + minutes*60 + seconds
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// VideoTrack picks the video representation closest to the requested pixel
// height; height 0 means best available. Ties go to the taller track.
func (m *dashManifest) VideoTrack(height int) *domain.Track {
	if len(m.videos) == 0 {
		return nil
	}
	if height == 0 {
		best := m.videos[0]
		for _, t := range m.videos[1:] {
			if t.Height > best.Height {
				best = t
			}
		}
		return best
	}
	best := m.videos[0]
	for _, t := range m.videos[1:] {
		bestDelta := absInt(best.Height - height)
		delta := absInt(t.Height - height)
		if delta < bestDelta || (delta == bestDelta && t.Height > best.Height) {
			best = t
		}
	}
	return best
}

// AudioTracks filters by requested languages with a containment match; an
// empty request selects everything, in manifest order.
func (m *dashManifest) AudioTracks(languages []string) []*domain.Track {
	return filterByLanguage(m.audios, languages)
}

// SubtitleTracks behaves like AudioTracks for text tracks.
func (m *dashManifest) SubtitleTracks(languages []string) []*domain.Track {
	return filterByLanguage(m.texts, languages)
}

// ProtectionHeader returns the PSSH box from the first content protection
// element carrying one, or nil for clear content.
func (m *dashManifest) ProtectionHeader() []byte {
	return m.pssh
}

func filterByLanguage(tracks []*domain.Track, languages []string) []*domain.Track {
	if len(languages) == 0 {
		return tracks
	}
	var matched []*domain.Track
	for _, t := range tracks {
		trackLang := strings.ToLower(t.Language)
		for _, lang := range languages {
			if strings.Contains(trackLang, strings.ToLower(lang)) {
				matched = append(matched, t)
				break
			}
		}
	}
	return matched
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
