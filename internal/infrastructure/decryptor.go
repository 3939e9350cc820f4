package infrastructure

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// MP4Decryptor strips CENC encryption from downloaded tracks by shelling
// out to mp4decrypt (Bento4).
type MP4Decryptor struct {
	binary  string
	logsDir string
	logger  *zap.Logger
}

// NewMP4Decryptor creates a decryptor around the given mp4decrypt binary.
func NewMP4Decryptor(binary, logsDir string, logger *zap.Logger) *MP4Decryptor {
	return &MP4Decryptor{binary: binary, logsDir: logsDir, logger: logger}
}

// Decrypt runs mp4decrypt with the track's content key. A missing binary
// is reported as domain.ErrExecutableNotFound so callers can degrade
// instead of aborting the title.
func (d *MP4Decryptor) Decrypt(ctx context.Context, key domain.ContentKey, inputPath, outputPath string) error {
	binary, err := resolveBinary(d.binary)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, d.binary)
	}

	args := []string{
		"--key", fmt.Sprintf("%s:%s", key.KID, key.Key),
		inputPath,
		outputPath,
	}

	toolLog, err := openToolLog(d.logsDir)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer toolLog.Close()

	cmdLine := ShellEscapeCommand(binary, args...)
	writeToolLogHeader(toolLog, "decrypt", filepath.Base(inputPath), cmdLine)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = toolLog
	cmd.Stderr = toolLog

	if err := cmd.Run(); err != nil {
		writeToolLogFooter(toolLog, false, fmt.Sprintf("mp4decrypt failed: %v", err))
		return fmt.Errorf("mp4decrypt failed: %w", err)
	}

	writeToolLogFooter(toolLog, true, fmt.Sprintf("Decrypted: %s", filepath.Base(outputPath)))
	d.logger.Debug("Track decrypted",
		zap.String("input", filepath.Base(inputPath)),
		zap.String("output", filepath.Base(outputPath)))
	return nil
}

// resolveBinary accepts either a bare command name resolved via PATH or an
// absolute/relative path to the executable.
func resolveBinary(binary string) (string, error) {
	if filepath.Base(binary) == binary {
		return exec.LookPath(binary)
	}
	if _, err := os.Stat(binary); err != nil {
		return "", err
	}
	return binary, nil
}

// openToolLog opens today's external-tool log file. Stdout and stderr of
// every subprocess invocation are appended to this single file.
func openToolLog(logsDir string) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	logPath := filepath.Join(logsDir, "tools-"+dateStr+".log")
	return os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeToolLogHeader writes the invocation start marker.
func writeToolLogHeader(file *os.File, tool, subject, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	file.WriteString(fmt.Sprintf("\n=== [%s] %s: %s ===\n", timestamp, tool, subject))
	file.WriteString(fmt.Sprintf("$ %s\n", cmdLine))
}

// writeToolLogFooter writes the invocation end marker.
func writeToolLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n", timestamp, status, message))
	file.WriteString("=== END ===\n\n")
}
