package domain

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage an error originated from.
type Stage string

const (
	StageConfig   Stage = "config"
	StageManifest Stage = "manifest"
	StageSelect   Stage = "select"
	StageWorkDir  Stage = "workdir"
	StageDownload Stage = "download"
	StageKeys     Stage = "keys"
	StageDecrypt  Stage = "decrypt"
	StageMux      Stage = "mux"
)

// ErrExecutableNotFound marks a missing external binary (decryptor or muxer).
// The affected stage is skipped rather than failing the pipeline.
var ErrExecutableNotFound = errors.New("required executable not found")

// ErrNoVideoTrack is returned when the manifest yields no video track; the
// pipeline cannot establish the canonical quality label without one.
var ErrNoVideoTrack = errors.New("no video track resolvable from manifest")

// PipelineError is a fatal, per-title failure surfaced to the caller instead
// of terminating the process. A batch caller records it and moves on to the
// next title.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s stage: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps err as a fatal failure of the given stage.
func NewPipelineError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}
