package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// HLSParser parses HLS playlists into the track model. A master playlist
// is expanded fully: every variant and alternative rendition has its media
// playlist fetched so tracks carry explicit segment URL lists.
type HLSParser struct {
	client *http.Client
	logger *zap.Logger
}

// NewHLSParser creates an HLS manifest parser. The client fetches variant
// media playlists referenced by the master.
func NewHLSParser(client *http.Client, logger *zap.Logger) *HLSParser {
	return &HLSParser{client: client, logger: logger}
}

type hlsManifest struct {
	videos []*domain.Track
	audios []*domain.Track
	texts  []*domain.Track
	pssh   []byte
}

// Parse decodes a master or media playlist.
func (p *HLSParser) Parse(ctx context.Context, raw []byte) (domain.Manifest, error) {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(raw)), true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	manifest := &hlsManifest{}
	switch listType {
	case m3u8.MASTER:
		if err := p.expandMaster(ctx, playlist.(*m3u8.MasterPlaylist), manifest); err != nil {
			return nil, err
		}
	case m3u8.MEDIA:
		track := p.mediaTrack(playlist.(*m3u8.MediaPlaylist), domain.TrackVideo, "0", "", "", manifest)
		if track == nil {
			return nil, fmt.Errorf("media playlist has no segments")
		}
		manifest.videos = append(manifest.videos, track)
	default:
		return nil, fmt.Errorf("unrecognized playlist type")
	}

	if len(manifest.videos) == 0 && len(manifest.audios) == 0 && len(manifest.texts) == 0 {
		return nil, fmt.Errorf("playlist yielded no tracks")
	}

	p.logger.Debug("HLS playlist parsed",
		zap.Int("video", len(manifest.videos)),
		zap.Int("audio", len(manifest.audios)),
		zap.Int("text", len(manifest.texts)),
		zap.Bool("protected", manifest.pssh != nil))
	return manifest, nil
}

func (p *HLSParser) expandMaster(ctx context.Context, master *m3u8.MasterPlaylist, manifest *hlsManifest) error {
	seenRenditions := make(map[string]bool)

	for i, variant := range master.Variants {
		if variant == nil || variant.URI == "" {
			continue
		}

		media, err := p.fetchMediaPlaylist(ctx, variant.URI)
		if err != nil {
			p.logger.Warn("Skipping variant", zap.String("uri", variant.URI), zap.Error(err))
			continue
		}

		width, height := parseResolution(variant.Resolution)
		track := p.mediaTrack(media, domain.TrackVideo, strconv.Itoa(i), "", "", manifest)
		if track == nil {
			continue
		}
		track.Width = width
		track.Height = height
		manifest.videos = append(manifest.videos, track)

		for _, alt := range variant.Alternatives {
			if alt == nil || alt.URI == "" || seenRenditions[alt.URI] {
				continue
			}
			seenRenditions[alt.URI] = true

			var altType domain.TrackType
			switch alt.Type {
			case "AUDIO":
				altType = domain.TrackAudio
			case "SUBTITLES":
				altType = domain.TrackText
			default:
				continue
			}

			altMedia, err := p.fetchMediaPlaylist(ctx, alt.URI)
			if err != nil {
				p.logger.Warn("Skipping rendition", zap.String("uri", alt.URI), zap.Error(err))
				continue
			}
			altTrack := p.mediaTrack(altMedia, altType, alt.GroupId, alt.Language, alt.Name, manifest)
			if altTrack == nil {
				continue
			}
			switch altType {
			case domain.TrackAudio:
				manifest.audios = append(manifest.audios, altTrack)
			case domain.TrackText:
				manifest.texts = append(manifest.texts, altTrack)
			}
		}
	}
	return nil
}

// mediaTrack converts one media playlist into a track and captures the
// protection header off its key tag when present.
func (p *HLSParser) mediaTrack(media *m3u8.MediaPlaylist, trackType domain.TrackType, id, language, label string, manifest *hlsManifest) *domain.Track {
	var segments []domain.SegmentRef
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		segments = append(segments, domain.SegmentRef{URL: seg.URI})
	}
	if len(segments) == 0 {
		return nil
	}

	if media.Key != nil && manifest.pssh == nil {
		manifest.pssh = extractPsshFromKeyURI(media.Key.URI)
	}

	return &domain.Track{
		Type:     trackType,
		ID:       id,
		Language: language,
		Label:    label,
		Segments: segments,
	}
}

func (p *HLSParser) fetchMediaPlaylist(ctx context.Context, uri string) (*m3u8.MediaPlaylist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("playlist fetch %s: unexpected status %d", uri, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(body)), true)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist at %s", uri)
	}
	return playlist.(*m3u8.MediaPlaylist), nil
}

// extractPsshFromKeyURI pulls the protection header out of a key tag whose
// URI embeds it as a base64 data URI, the shape DRM-protected HLS uses.
func extractPsshFromKeyURI(uri string) []byte {
	idx := strings.Index(uri, "base64,")
	if idx < 0 {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+len("base64,"):])
	if err != nil {
		return nil
	}
	return data
}

func parseResolution(resolution string) (int, int) {
	parts := strings.SplitN(strings.ToLower(resolution), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	width, _ := strconv.Atoi(parts[0])
	height, _ := strconv.Atoi(parts[1])
	return width, height
}

// VideoTrack picks the variant closest to the requested pixel height;
// height 0 means best available.
func (m *hlsManifest) VideoTrack(height int) *domain.Track {
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

// AudioTracks filters renditions by requested languages.
func (m *hlsManifest) AudioTracks(languages []string) []*domain.Track {
	return filterByLanguage(m.audios, languages)
}

// SubtitleTracks behaves like AudioTracks for subtitle renditions.
func (m *hlsManifest) SubtitleTracks(languages []string) []*domain.Track {
	return filterByLanguage(m.texts, languages)
}

// ProtectionHeader returns the protection header found in the playlists'
// key tags, or nil for clear content.
func (m *hlsManifest) ProtectionHeader() []byte {
	return m.pssh
}
