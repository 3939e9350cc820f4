package domain

import "context"

// Manifest is a parsed provider manifest. Track selection by quality and
// language lives behind this interface; the pipeline only sequences the
// results.
type Manifest interface {
	// VideoTrack returns the video track closest to the requested pixel
	// height, or nil when the manifest has none. height 0 means "best".
	VideoTrack(height int) *Track
	// AudioTracks returns audio tracks whose language matches any of the
	// requested languages (containment match); an empty list means all.
	AudioTracks(languages []string) []*Track
	// SubtitleTracks behaves like AudioTracks for text tracks.
	SubtitleTracks(languages []string) []*Track
	// ProtectionHeader returns the DRM initialization data (PSSH) extracted
	// from the manifest, or nil for clear content.
	ProtectionHeader() []byte
}

// ManifestParser turns a serialized manifest into a Manifest.
type ManifestParser interface {
	Parse(ctx context.Context, raw []byte) (Manifest, error)
}

// SegmentJob describes one track's segmented download: the ordered segment
// URLs are fetched with up to Concurrency requests in flight and reassembled
// into Filepath in original order.
type SegmentJob struct {
	URLs        []string
	Filepath    string
	Concurrency int
}

// SegmentDownloader concatenates a track's segments into one file.
type SegmentDownloader interface {
	Download(ctx context.Context, job SegmentJob) error
}

// SubtitleFetcher fetches one sidecar subtitle file by plain HTTP GET.
type SubtitleFetcher interface {
	Fetch(ctx context.Context, ref SubtitleRef, destPath string) error
}

// KeyService obtains content keys for one title via the license server
// round trip described by the DRM config.
type KeyService interface {
	Keys(ctx context.Context, protectionHeader []byte, drm *DrmConfig) (Keyring, error)
}

// CDMSession is the external content-decryption-module session: it produces
// a license challenge for a protection header and extracts content keys from
// the license the server returns. The cryptography behind both calls is out
// of scope here.
type CDMSession interface {
	Challenge(protectionHeader []byte) ([]byte, error)
	ProcessLicense(license []byte) (Keyring, error)
	Close() error
}

// Decryptor decrypts one downloaded track file with one content key.
// Implementations report a missing executable via ErrExecutableNotFound.
type Decryptor interface {
	Decrypt(ctx context.Context, key ContentKey, inputPath, outputPath string) error
}

// MuxInput is one source file for the muxer, in output stream order.
type MuxInput struct {
	Path     string
	Type     TrackType
	Language string
	Label    string
}

// MuxJob describes the single muxer invocation that closes a pipeline run.
type MuxJob struct {
	Inputs    []MuxInput
	Output    string
	TrimBegin string
	TrimEnd   string
	Cleanup   bool
}

// Muxer combines track files into one container. Implementations report a
// missing executable via ErrExecutableNotFound.
type Muxer interface {
	Mux(ctx context.Context, job MuxJob) error
}
