package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a pipeline job
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is one title queued for the acquisition pipeline. The download config
// and options are stored serialized so a job survives a restart.
type Job struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Title        string    `json:"title" gorm:"not null"`
	Provider     string    `json:"provider"`
	Status       JobStatus `json:"status" gorm:"not null;index"`
	Config       string    `json:"config,omitempty" gorm:"type:text"`  // JSON DownloadConfig
	Options      string    `json:"options,omitempty" gorm:"type:text"` // JSON Options
	ErrorMessage string    `json:"error_message,omitempty"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job from a validated config and options.
func NewJob(cfg *DownloadConfig, opts Options) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Title:     cfg.Title(),
		Provider:  cfg.Provider,
		Status:    StatusQueued,
		Config:    string(cfgJSON),
		Options:   string(optsJSON),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DownloadConfig decodes the job's stored config.
func (j *Job) DownloadConfig() (*DownloadConfig, error) {
	return ParseDownloadConfig([]byte(j.Config))
}

// PipelineOptions decodes the job's stored options.
func (j *Job) PipelineOptions() (Options, error) {
	var opts Options
	if j.Options == "" {
		return DefaultOptions(), nil
	}
	if err := json.Unmarshal([]byte(j.Options), &opts); err != nil {
		return Options{}, err
	}
	return opts.WithDefaults(), nil
}

// MarkProcessing marks the job as picked up by the pipeline.
func (j *Job) MarkProcessing() {
	j.Status = StatusProcessing
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted marks the job as done with its final artifact path.
func (j *Job) MarkCompleted(outputPath string) {
	j.Status = StatusCompleted
	j.OutputPath = outputPath
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed records the failure; the stage is kept separately when the
// error carries one.
func (j *Job) MarkFailed(err error) {
	j.Status = StatusFailed
	j.ErrorMessage = err.Error()
	if perr, ok := err.(*PipelineError); ok {
		j.FailedStage = string(perr.Stage)
	}
	j.UpdatedAt = time.Now()
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsPending checks if the job is waiting to be processed
func (j *Job) IsPending() bool {
	return j.Status == StatusQueued
}

// JobStats summarizes the ledger by status.
type JobStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
