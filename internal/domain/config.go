package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig contains filesystem layout configuration. Every title gets
// its own work directory under BaseDir/downloads.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	LogsDir string `mapstructure:"logs_dir"`
}

// PipelineConfig contains acquisition pipeline configuration.
type PipelineConfig struct {
	PartSize        int           `mapstructure:"part_size"`
	DecryptorBinary string        `mapstructure:"decryptor_binary"`
	MuxerBinary     string        `mapstructure:"muxer_binary"`
	MovieTemplate   string        `mapstructure:"movie_template"`
	EpisodeTemplate string        `mapstructure:"episode_template"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	CDMServer       string        `mapstructure:"cdm_server"` // remote CDM service base URL, empty disables DRM

}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath    string        `mapstructure:"database_path"`
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AutoExitOnEmpty bool          `mapstructure:"auto_exit_on_empty"`
	EmptyWaitTime   time.Duration `mapstructure:"empty_wait_time"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			BaseDir: "$HOME/Downloads/vodgrab",
			LogsDir: "$HOME/Downloads/vodgrab/logs",
		},
		Pipeline: PipelineConfig{
			PartSize:        DefaultPartSize,
			DecryptorBinary: "mp4decrypt",
			MuxerBinary:     "ffmpeg",
			MovieTemplate:   DefaultMovieTemplate,
			EpisodeTemplate: DefaultEpisodeTemplate,
			HTTPTimeout:     2 * time.Minute,
		},
		Queue: QueueConfig{
			DatabasePath:    "$HOME/Downloads/vodgrab/jobs.db",
			CheckInterval:   10 * time.Second,
			AutoExitOnEmpty: false,
			EmptyWaitTime:   5 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
