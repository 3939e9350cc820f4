package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// PipelineDeps are the external collaborators one pipeline run drives. All
// of them are constructed explicitly by the caller and scoped to the run;
// there is no shared ambient state between runs.
type PipelineDeps struct {
	Parser    domain.ManifestParser
	Segments  domain.SegmentDownloader
	Subtitles domain.SubtitleFetcher
	Keys      domain.KeyService
	Decryptor domain.Decryptor
	Muxer     domain.Muxer
}

// Pipeline sequences one title through download, key acquisition,
// decryption and mux. Stage ordering is strict: keys are requested only
// after every track download has completed, decryption of a track needs its
// download and the keys, and the mux waits for every decryption to settle.
type Pipeline struct {
	deps    PipelineDeps
	baseDir string
	logger  *zap.Logger
}

// NewPipeline creates a pipeline rooted at baseDir; each title gets its own
// work directory under baseDir/downloads.
func NewPipeline(deps PipelineDeps, baseDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{deps: deps, baseDir: baseDir, logger: logger}
}

// Result describes what one run left on disk.
type Result struct {
	WorkDir    string
	OutputPath string // empty when the mux stage was skipped or failed
	Tracks     int
	Decrypted  int
}

// Run executes the full pipeline for one download config. Fatal conditions
// (unparsable manifest, no video track, any track download failure, key
// exchange failure) come back as *domain.PipelineError; everything else
// degrades and is only logged, possibly leaving a partial artifact.
func (p *Pipeline) Run(ctx context.Context, cfg *domain.DownloadConfig, opts domain.Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewPipelineError(domain.StageConfig, err)
	}
	opts = opts.WithDefaults()

	manifest, err := p.deps.Parser.Parse(ctx, cfg.Manifest)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageManifest, fmt.Errorf("unable to parse manifest: %w", err))
	}

	selector := NewTrackSelector(p.logger)
	tracks, height, err := selector.Select(manifest, opts)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageSelect, err)
	}

	namer := NewNamer(cfg, opts, height)
	workDir := filepath.Join(p.baseDir, "downloads", namer.WorkDirName())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, domain.NewPipelineError(domain.StageWorkDir, fmt.Errorf("failed to create work directory: %w", err))
	}

	p.logger.Info(p.titleBanner(cfg, tracks, height))

	// Track downloads and the subtitle batch run concurrently; both must
	// settle before keys are requested.
	var subtitleWg sync.WaitGroup
	subtitleWg.Add(1)
	go func() {
		defer subtitleWg.Done()
		p.downloadSubtitles(ctx, cfg, opts, namer, workDir)
	}()

	err = p.downloadTracks(ctx, tracks, opts, namer, workDir)
	subtitleWg.Wait()
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageDownload, err)
	}

	keyring, err := p.acquireKeys(ctx, cfg, manifest)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageKeys, err)
	}

	decrypted := p.decryptTracks(ctx, tracks, keyring, namer, workDir)

	result := &Result{
		WorkDir:   workDir,
		Tracks:    len(tracks),
		Decrypted: countTrue(decrypted),
	}

	if opts.SkipMux {
		p.logger.Info("Mux skipped by request", zap.String("work_dir", workDir))
		return result, nil
	}

	outputPath, err := p.mux(ctx, tracks, decrypted, opts, namer, workDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Degrade: the per-track files stay on disk as the artifact.
		p.logger.Error("Muxing failed, leaving per-track files in place",
			zap.String("work_dir", workDir),
			zap.Error(err))
		return result, nil
	}
	result.OutputPath = outputPath
	p.logger.Info("Muxed successfully", zap.String("output", outputPath))
	return result, nil
}

// downloadTracks fans out one segmented download per track and joins them.
// Fan-out across tracks is unbounded; only in-flight segments within a
// track are capped by the part size. Any single track failure is fatal and
// already-written files are left in place.
func (p *Pipeline) downloadTracks(ctx context.Context, tracks []*domain.Track, opts domain.Options, namer *Namer, workDir string) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(tracks))
	for _, track := range tracks {
		wg.Add(1)
		go func(t *domain.Track) {
			defer wg.Done()
			job := domain.SegmentJob{
				URLs:        t.SegmentURLs(),
				Filepath:    filepath.Join(workDir, p.downloadedTrackFile(namer, t)),
				Concurrency: opts.PartSize,
			}
			if err := p.deps.Segments.Download(ctx, job); err != nil {
				errCh <- fmt.Errorf("track %s/%s: %w", t.Type, t.ID, err)
			}
		}(track)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// downloadSubtitles fetches each sidecar subtitle with a plain GET.
// Per-item failures are logged and skipped; the run carries on.
func (p *Pipeline) downloadSubtitles(ctx context.Context, cfg *domain.DownloadConfig, opts domain.Options, namer *Namer, workDir string) {
	if opts.SkipSubtitles || len(cfg.Subtitles) == 0 {
		return
	}
	for _, ref := range cfg.Subtitles {
		dest := filepath.Join(workDir, namer.SubtitleSidecarFile(ref))
		if err := p.deps.Subtitles.Fetch(ctx, ref, dest); err != nil {
			p.logger.Error("Failed to download subtitles", zap.String("language", ref.Language))
			p.logger.Debug("Subtitle fetch error", zap.String("url", ref.URL), zap.Error(err))
			continue
		}
	}
}

// acquireKeys runs the license exchange once per title. A title without DRM
// parameters or a protection header is treated as clear content.
func (p *Pipeline) acquireKeys(ctx context.Context, cfg *domain.DownloadConfig, manifest domain.Manifest) (domain.Keyring, error) {
	pssh := manifest.ProtectionHeader()
	if cfg.DRM == nil || len(pssh) == 0 {
		p.logger.Debug("No DRM parameters or protection header, treating title as unencrypted")
		return nil, nil
	}
	p.logger.Info("Starting decryption")
	keyring, err := p.deps.Keys.Keys(ctx, pssh, cfg.DRM)
	if err != nil {
		return nil, err
	}
	return keyring, nil
}

// decryptTracks invokes the decryptor for every media track concurrently
// and waits for all of them. A successful decrypt supersedes the encrypted
// download, which is removed. Returned slice marks, per track index,
// whether a decrypted output exists. With no usable keys the stage is
// skipped entirely and the downloaded files are used as-is.
func (p *Pipeline) decryptTracks(ctx context.Context, tracks []*domain.Track, keyring domain.Keyring, namer *Namer, workDir string) []bool {
	decrypted := make([]bool, len(tracks))
	if !keyring.Usable() {
		p.logger.Info("No usable decryption keys, skipping decryption")
		return decrypted
	}

	var wg sync.WaitGroup
	for i, track := range tracks {
		if track.Type == domain.TrackText {
			continue
		}
		wg.Add(1)
		go func(i int, t *domain.Track) {
			defer wg.Done()
			key, ok := keyring.ForKID(t.KID)
			if !ok {
				p.logger.Error("No content key for track",
					zap.String("track", t.ID),
					zap.String("kid", t.KID))
				return
			}
			input := filepath.Join(workDir, namer.MediaTrackFile(t, "enc"))
			output := filepath.Join(workDir, namer.MediaTrackFile(t, "dec"))
			if err := p.deps.Decryptor.Decrypt(ctx, key, input, output); err != nil {
				if errors.Is(err, domain.ErrExecutableNotFound) {
					p.logger.Error("Decryption failed, required package is missing", zap.Error(err))
				} else {
					p.logger.Error("Decryption failed",
						zap.String("track", t.ID),
						zap.Error(err))
				}
				return
			}
			decrypted[i] = true
			// The encrypted download is dead weight once a decrypted copy
			// exists; removal is best-effort.
			if err := os.Remove(input); err != nil {
				p.logger.Warn("Failed to remove encrypted input",
					zap.String("path", input),
					zap.Error(err))
			}
		}(i, track)
	}
	wg.Wait()
	if countTrue(decrypted) > 0 {
		p.logger.Info("Decrypted successfully", zap.Int("tracks", countTrue(decrypted)))
	}
	return decrypted
}

// mux runs the muxer once over every track file in selection order. Tracks
// that were never decrypted feed their downloaded file instead of the "dec"
// stage output.
func (p *Pipeline) mux(ctx context.Context, tracks []*domain.Track, decrypted []bool, opts domain.Options, namer *Namer, workDir string) (string, error) {
	p.logger.Info("Muxing")
	inputs := make([]domain.MuxInput, 0, len(tracks))
	for i, track := range tracks {
		var name string
		if track.Type == domain.TrackText {
			name = namer.TextTrackFile(track)
		} else if decrypted[i] {
			name = namer.MediaTrackFile(track, "dec")
		} else {
			name = p.downloadedTrackFile(namer, track)
		}
		inputs = append(inputs, domain.MuxInput{
			Path:     filepath.Join(workDir, name),
			Type:     track.Type,
			Language: track.Language,
			Label:    track.Label,
		})
	}
	output := filepath.Join(workDir, namer.OutputFile())
	job := domain.MuxJob{
		Inputs:    inputs,
		Output:    output,
		TrimBegin: opts.TrimBegin,
		TrimEnd:   opts.TrimEnd,
		Cleanup:   true,
	}
	if err := p.deps.Muxer.Mux(ctx, job); err != nil {
		return "", err
	}
	return output, nil
}

// downloadedTrackFile names the file the download coordinator writes for a
// track: subtitles have no stage suffix, media tracks use "enc" because
// encryption status is unknown until keys arrive.
func (p *Pipeline) downloadedTrackFile(namer *Namer, t *domain.Track) string {
	if t.Type == domain.TrackText {
		return namer.TextTrackFile(t)
	}
	return namer.MediaTrackFile(t, "enc")
}

// titleBanner builds the one-line run summary, collapsing empty separators.
func (p *Pipeline) titleBanner(cfg *domain.DownloadConfig, tracks []*domain.Track, height int) string {
	var parts []string
	parts = append(parts, cfg.Title())
	if cfg.Season != nil && cfg.Episode != nil {
		parts = append(parts, fmt.Sprintf("S%d:E%d", cfg.Season.Number, cfg.Episode.Number))
	} else if cfg.Episode != nil {
		parts = append(parts, fmt.Sprintf("E%d", cfg.Episode.Number))
	}
	if cfg.Episode != nil && cfg.Episode.Title != "" {
		parts = append(parts, cfg.Episode.Title)
	}
	parts = append(parts, fmt.Sprintf("%dp", height))
	for _, t := range tracks {
		if t.Type == domain.TrackVideo {
			if t.HDR {
				parts = append(parts, "HDR")
			}
			if t.SizeMB > 0 {
				parts = append(parts, fmt.Sprintf("%d MB", t.SizeMB))
			}
			break
		}
	}
	return strings.Join(parts, " • ")
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
