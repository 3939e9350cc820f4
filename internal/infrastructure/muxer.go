package infrastructure

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// FFmpegMuxer combines the per-track files of a finished title into one
// container by shelling out to ffmpeg. Streams are copied, never
// re-encoded; only subtitles are converted to srt.
type FFmpegMuxer struct {
	binary  string
	logsDir string
	logger  *zap.Logger
}

// NewFFmpegMuxer creates a muxer around the given ffmpeg binary.
func NewFFmpegMuxer(binary, logsDir string, logger *zap.Logger) *FFmpegMuxer {
	return &FFmpegMuxer{binary: binary, logsDir: logsDir, logger: logger}
}

// Mux runs ffmpeg over job.Inputs and writes job.Output. A missing binary
// is reported as domain.ErrExecutableNotFound. With job.Cleanup set the
// input files are removed after a successful mux.
func (m *FFmpegMuxer) Mux(ctx context.Context, job domain.MuxJob) error {
	if len(job.Inputs) == 0 {
		return fmt.Errorf("no mux inputs")
	}

	binary, err := resolveBinary(m.binary)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, m.binary)
	}

	args := m.buildArgs(job)

	toolLog, err := openToolLog(m.logsDir)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer toolLog.Close()

	cmdLine := ShellEscapeCommand(binary, args...)
	writeToolLogHeader(toolLog, "mux", filepath.Base(job.Output), cmdLine)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = toolLog
	cmd.Stderr = toolLog

	if err := cmd.Run(); err != nil {
		writeToolLogFooter(toolLog, false, fmt.Sprintf("ffmpeg failed: %v", err))
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	writeToolLogFooter(toolLog, true, fmt.Sprintf("Muxed: %s", filepath.Base(job.Output)))
	m.logger.Info("Tracks muxed",
		zap.Int("inputs", len(job.Inputs)),
		zap.String("output", filepath.Base(job.Output)))

	if job.Cleanup {
		for _, input := range job.Inputs {
			if err := os.Remove(input.Path); err != nil {
				m.logger.Warn("Failed to remove muxed input",
					zap.String("path", input.Path),
					zap.Error(err))
			}
		}
	}
	return nil
}

// buildArgs assembles the ffmpeg command line. Each input may carry a trim
// window, every input is mapped into the output in order, and audio and
// subtitle streams get language and title metadata.
func (m *FFmpegMuxer) buildArgs(job domain.MuxJob) []string {
	args := []string{"-y"}

	for _, input := range job.Inputs {
		if job.TrimBegin != "" {
			args = append(args, "-ss", job.TrimBegin)
		}
		if job.TrimEnd != "" {
			args = append(args, "-to", job.TrimEnd)
		}
		args = append(args, "-i", input.Path)
	}

	for i := range job.Inputs {
		args = append(args, "-map", strconv.Itoa(i))
	}

	audioIndex := 0
	textIndex := 0
	for _, input := range job.Inputs {
		switch input.Type {
		case domain.TrackAudio:
			args = append(args,
				fmt.Sprintf("-metadata:s:a:%d", audioIndex), "language="+input.Language,
				fmt.Sprintf("-metadata:s:a:%d", audioIndex), "title="+input.Label)
			audioIndex++
		case domain.TrackText:
			args = append(args,
				fmt.Sprintf("-metadata:s:s:%d", textIndex), "language="+input.Language,
				fmt.Sprintf("-metadata:s:s:%d", textIndex), "title="+input.Label)
			textIndex++
		}
	}

	args = append(args, "-c:v", "copy", "-c:a", "copy", "-c:s", "srt")
	args = append(args, job.Output)
	return args
}
