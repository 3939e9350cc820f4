package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobConfig() *DownloadConfig {
	return &DownloadConfig{
		Manifest: []byte("#EXTM3U"),
		Provider: "CR",
		Movie:    &Movie{Title: "Foo Bar"},
	}
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(jobConfig(), DefaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "Foo Bar", job.Title)
	assert.Equal(t, "CR", job.Provider)
	assert.Equal(t, StatusQueued, job.Status)
	assert.True(t, job.IsPending())
	assert.False(t, job.IsTerminal())
}

func TestNewJobRejectsInvalidConfig(t *testing.T) {
	_, err := NewJob(&DownloadConfig{}, DefaultOptions())
	assert.Error(t, err)
}

func TestJobRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.VideoHeight = 720
	opts.AudioLanguages = []string{"ja"}

	job, err := NewJob(jobConfig(), opts)
	require.NoError(t, err)

	cfg, err := job.DownloadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Foo Bar", cfg.Title())

	decoded, err := job.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, 720, decoded.VideoHeight)
	assert.Equal(t, []string{"ja"}, decoded.AudioLanguages)
	assert.Equal(t, DefaultPartSize, decoded.PartSize)
}

func TestJobStatusTransitions(t *testing.T) {
	job, err := NewJob(jobConfig(), DefaultOptions())
	require.NoError(t, err)

	job.MarkProcessing()
	assert.Equal(t, StatusProcessing, job.Status)
	assert.NotNil(t, job.StartedAt)

	job.MarkCompleted("/tmp/out.mkv")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "/tmp/out.mkv", job.OutputPath)
	assert.NotNil(t, job.CompletedAt)
	assert.True(t, job.IsTerminal())
}

func TestJobMarkFailedCapturesStage(t *testing.T) {
	job, err := NewJob(jobConfig(), DefaultOptions())
	require.NoError(t, err)

	job.MarkFailed(NewPipelineError(StageDownload, fmt.Errorf("track video/0: connection reset")))
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, string(StageDownload), job.FailedStage)
	assert.Contains(t, job.ErrorMessage, "connection reset")

	// Plain errors leave the stage empty.
	job2, err := NewJob(jobConfig(), DefaultOptions())
	require.NoError(t, err)
	job2.MarkFailed(fmt.Errorf("boom"))
	assert.Empty(t, job2.FailedStage)
}
