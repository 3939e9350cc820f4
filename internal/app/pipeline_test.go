package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

type fakeParser struct {
	manifest domain.Manifest
	err      error
}

func (p *fakeParser) Parse(ctx context.Context, raw []byte) (domain.Manifest, error) {
	return p.manifest, p.err
}

// callRecorder collects collaborator invocations in order.
type callRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *callRecorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *callRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeSegmentDownloader struct {
	rec        *callRecorder
	failPath   string // Filepath substring that triggers an error
	delay      time.Duration
	writeFiles bool // write an actual file at job.Filepath
}

func (d *fakeSegmentDownloader) Download(ctx context.Context, job domain.SegmentJob) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.failPath != "" && strings.Contains(job.Filepath, d.failPath) {
		return fmt.Errorf("segment fetch failed")
	}
	if d.writeFiles {
		if err := os.WriteFile(job.Filepath, []byte("segments"), 0644); err != nil {
			return err
		}
	}
	d.rec.record("download:" + filepath.Base(job.Filepath))
	return nil
}

type fakeSubtitleFetcher struct {
	rec *callRecorder
	err error
}

func (f *fakeSubtitleFetcher) Fetch(ctx context.Context, ref domain.SubtitleRef, destPath string) error {
	f.rec.record("subtitle:" + ref.Language)
	return f.err
}

type fakeKeyService struct {
	rec     *callRecorder
	keyring domain.Keyring
	err     error
}

func (s *fakeKeyService) Keys(ctx context.Context, pssh []byte, drm *domain.DrmConfig) (domain.Keyring, error) {
	s.rec.record("keys")
	return s.keyring, s.err
}

type fakeDecryptor struct {
	rec        *callRecorder
	err        error
	delay      time.Duration
	writeFiles bool // write an actual file at outputPath
}

func (d *fakeDecryptor) Decrypt(ctx context.Context, key domain.ContentKey, inputPath, outputPath string) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return d.err
	}
	if d.writeFiles {
		if err := os.WriteFile(outputPath, []byte("decrypted"), 0644); err != nil {
			return err
		}
	}
	d.rec.record("decrypt:" + filepath.Base(inputPath))
	return nil
}

type fakeMuxer struct {
	rec *callRecorder
	err error

	mu   sync.Mutex
	jobs []domain.MuxJob
}

func (m *fakeMuxer) Mux(ctx context.Context, job domain.MuxJob) error {
	m.rec.record("mux")
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return m.err
}

type pipelineFixture struct {
	rec       *callRecorder
	parser    *fakeParser
	segments  *fakeSegmentDownloader
	subtitles *fakeSubtitleFetcher
	keys      *fakeKeyService
	decryptor *fakeDecryptor
	muxer     *fakeMuxer
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T, manifest domain.Manifest) *pipelineFixture {
	rec := &callRecorder{}
	f := &pipelineFixture{
		rec:       rec,
		parser:    &fakeParser{manifest: manifest},
		segments:  &fakeSegmentDownloader{rec: rec},
		subtitles: &fakeSubtitleFetcher{rec: rec},
		keys:      &fakeKeyService{rec: rec},
		decryptor: &fakeDecryptor{rec: rec},
		muxer:     &fakeMuxer{rec: rec},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Parser:    f.parser,
		Segments:  f.segments,
		Subtitles: f.subtitles,
		Keys:      f.keys,
		Decryptor: f.decryptor,
		Muxer:     f.muxer,
	}, t.TempDir(), zap.NewNop())
	return f
}

func encryptedConfig() *domain.DownloadConfig {
	cfg := movieConfig("Foo Bar", "CR", "")
	cfg.DRM = &domain.DrmConfig{Server: "https://license.example.com"}
	return cfg
}

func TestPipelineClearContentSkipsDecryption(t *testing.T) {
	manifest := testManifest()
	f := newPipelineFixture(t, manifest)

	// No DRM config and no protection header: downloads feed the muxer
	// directly and the decryptor must never run.
	result, err := f.pipeline.Run(context.Background(), movieConfig("Foo Bar", "CR", ""), domain.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Decrypted)
	assert.NotEmpty(t, result.OutputPath)

	for _, event := range f.rec.all() {
		assert.False(t, strings.HasPrefix(event, "decrypt:"), "decryptor invoked on clear content: %s", event)
	}

	require.Len(t, f.muxer.jobs, 1)
	for _, input := range f.muxer.jobs[0].Inputs {
		if input.Type != domain.TrackText {
			assert.Contains(t, input.Path, ".enc.")
		}
	}
}

func TestPipelineEncryptedHappyPath(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{0x70, 0x73, 0x73, 0x68}
	f := newPipelineFixture(t, manifest)
	f.keys.keyring = domain.Keyring{{KID: "kid1", Key: "key1"}}

	result, err := f.pipeline.Run(context.Background(), encryptedConfig(), domain.DefaultOptions())
	require.NoError(t, err)

	// One decryption per media track; the text track stays untouched.
	assert.Equal(t, 4, result.Decrypted)

	require.Len(t, f.muxer.jobs, 1)
	inputs := f.muxer.jobs[0].Inputs
	require.Len(t, inputs, 5)
	for _, input := range inputs {
		if input.Type == domain.TrackText {
			assert.NotContains(t, input.Path, ".dec.")
		} else {
			assert.Contains(t, input.Path, ".dec.")
		}
	}
}

func TestPipelineRemovesEncryptedInputsAfterDecrypt(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{1}
	f := newPipelineFixture(t, manifest)
	f.keys.keyring = domain.Keyring{{KID: "kid1", Key: "key1"}}
	f.segments.writeFiles = true
	f.decryptor.writeFiles = true

	result, err := f.pipeline.Run(context.Background(), encryptedConfig(), domain.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 4, result.Decrypted)

	// Once a decrypted copy exists the encrypted download must be gone.
	stale, err := filepath.Glob(filepath.Join(result.WorkDir, "*.enc.*"))
	require.NoError(t, err)
	assert.Empty(t, stale, "encrypted inputs left on disk after successful decrypt")

	kept, err := filepath.Glob(filepath.Join(result.WorkDir, "*.dec.*"))
	require.NoError(t, err)
	assert.Len(t, kept, 4)
}

func TestPipelineMuxWaitsForDecryption(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{1}
	f := newPipelineFixture(t, manifest)
	f.keys.keyring = domain.Keyring{{KID: "kid1", Key: "key1"}}
	f.decryptor.delay = 10 * time.Millisecond

	_, err := f.pipeline.Run(context.Background(), encryptedConfig(), domain.DefaultOptions())
	require.NoError(t, err)

	events := f.rec.all()
	muxIdx := -1
	lastDecryptIdx := -1
	decrypts := 0
	for i, event := range events {
		if event == "mux" {
			muxIdx = i
		}
		if strings.HasPrefix(event, "decrypt:") {
			lastDecryptIdx = i
			decrypts++
		}
	}
	require.Equal(t, 4, decrypts)
	require.GreaterOrEqual(t, muxIdx, 0)
	assert.Greater(t, muxIdx, lastDecryptIdx, "mux started before every decryption settled: %v", events)
}

func TestPipelineKeysRequestedAfterDownloads(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{1}
	f := newPipelineFixture(t, manifest)
	f.keys.keyring = domain.Keyring{{KID: "kid1", Key: "key1"}}
	f.segments.delay = 10 * time.Millisecond

	cfg := encryptedConfig()
	cfg.Subtitles = []domain.SubtitleRef{{URL: "https://example.com/en.vtt", Language: "en"}}

	_, err := f.pipeline.Run(context.Background(), cfg, domain.DefaultOptions())
	require.NoError(t, err)

	events := f.rec.all()
	keysIdx := -1
	lastDownloadIdx := -1
	for i, event := range events {
		if event == "keys" {
			keysIdx = i
		}
		if strings.HasPrefix(event, "download:") || strings.HasPrefix(event, "subtitle:") {
			lastDownloadIdx = i
		}
	}
	require.GreaterOrEqual(t, keysIdx, 0)
	assert.Greater(t, keysIdx, lastDownloadIdx, "keys requested before all downloads settled: %v", events)
}

func TestPipelineMissingDecryptorStillMuxes(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{1}
	f := newPipelineFixture(t, manifest)
	f.keys.keyring = domain.Keyring{{KID: "kid1", Key: "key1"}}
	f.decryptor.err = domain.ErrExecutableNotFound

	result, err := f.pipeline.Run(context.Background(), encryptedConfig(), domain.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Decrypted)

	// The mux still runs, consuming the downloaded files.
	require.Len(t, f.muxer.jobs, 1)
	for _, input := range f.muxer.jobs[0].Inputs {
		assert.NotContains(t, input.Path, ".dec.")
	}
}

func TestPipelineDownloadFailureIsFatal(t *testing.T) {
	f := newPipelineFixture(t, testManifest())
	f.segments.failPath = ".audio.a1."

	_, err := f.pipeline.Run(context.Background(), movieConfig("Foo Bar", "CR", ""), domain.DefaultOptions())
	require.Error(t, err)

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.StageDownload, perr.Stage)
	assert.NotContains(t, f.rec.all(), "mux")
}

func TestPipelineKeyExchangeFailureIsFatal(t *testing.T) {
	manifest := testManifest()
	manifest.pssh = []byte{1}
	f := newPipelineFixture(t, manifest)
	f.keys.err = fmt.Errorf("license server unreachable")

	_, err := f.pipeline.Run(context.Background(), encryptedConfig(), domain.DefaultOptions())
	require.Error(t, err)

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.StageKeys, perr.Stage)
}

func TestPipelineUnparsableManifestIsFatal(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.parser.err = fmt.Errorf("bad manifest")

	_, err := f.pipeline.Run(context.Background(), movieConfig("Foo Bar", "CR", ""), domain.DefaultOptions())
	require.Error(t, err)

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.StageManifest, perr.Stage)
}

func TestPipelineSkipMux(t *testing.T) {
	f := newPipelineFixture(t, testManifest())

	opts := domain.DefaultOptions()
	opts.SkipMux = true

	result, err := f.pipeline.Run(context.Background(), movieConfig("Foo Bar", "CR", ""), opts)
	require.NoError(t, err)
	assert.Empty(t, result.OutputPath)
	assert.NotContains(t, f.rec.all(), "mux")
}

func TestPipelineSubtitleFailureDegrades(t *testing.T) {
	f := newPipelineFixture(t, testManifest())
	f.subtitles.err = fmt.Errorf("404")

	cfg := movieConfig("Foo Bar", "CR", "")
	cfg.Subtitles = []domain.SubtitleRef{{URL: "https://example.com/en.vtt", Language: "en"}}

	result, err := f.pipeline.Run(context.Background(), cfg, domain.DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, result.OutputPath)
}

func TestPipelineMuxFailureDegrades(t *testing.T) {
	f := newPipelineFixture(t, testManifest())
	f.muxer.err = fmt.Errorf("ffmpeg exploded")

	result, err := f.pipeline.Run(context.Background(), movieConfig("Foo Bar", "CR", ""), domain.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, result.OutputPath)
	assert.NotEmpty(t, result.WorkDir)
}

func TestPipelineInvalidConfig(t *testing.T) {
	f := newPipelineFixture(t, testManifest())

	_, err := f.pipeline.Run(context.Background(), &domain.DownloadConfig{}, domain.DefaultOptions())
	require.Error(t, err)

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.StageConfig, perr.Stage)
}
