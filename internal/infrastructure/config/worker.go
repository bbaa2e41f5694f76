package config

import "time"

// Worker holds the worker process configuration.
type Worker struct {
	// Number of task slots executing concurrently
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`

	// Comma-separated queue list, e.g. "compute_pi,document_analysis".
	// Each queue is an execution-request stream the worker subscribes to.
	Queues string `mapstructure:"queues" validate:"required"`

	// Consumer group the worker pool joins on each queue stream
	Group string `mapstructure:"group" validate:"required"`

	// Pause between emitted work units, simulating heavy computation in the
	// demo kernels; zero disables pacing
	PacingInterval time.Duration `mapstructure:"pacing_interval"`

	// Directory documents are downloaded into when a task supplies a URL
	DownloadDir string `mapstructure:"download_dir"`
}
