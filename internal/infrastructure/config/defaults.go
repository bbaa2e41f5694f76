package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "taskstream"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "taskstream"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Streams defaults
	if cfg.Streams.URL == "" {
		cfg.Streams.URL = "redis://localhost:6379/0"
	}
	if cfg.Streams.Stream == "" {
		cfg.Streams.Stream = "task_events"
	}
	if cfg.Streams.Group == "" {
		cfg.Streams.Group = "api"
	}
	if cfg.Streams.BlockMS == 0 {
		cfg.Streams.BlockMS = 5000
	}
	if cfg.Streams.Count == 0 {
		cfg.Streams.Count = 10
	}
	if cfg.Streams.ReclaimIdleMS == 0 {
		cfg.Streams.ReclaimIdleMS = 60000
	}
	if cfg.Streams.MaxConnections == 0 {
		cfg.Streams.MaxConnections = 10
	}
	if cfg.Streams.SocketTimeoutSec == 0 {
		cfg.Streams.SocketTimeoutSec = 5
	}

	// Event handler defaults
	if cfg.Events.StatusDelta == 0 {
		cfg.Events.StatusDelta = 0.02
	}
	if cfg.Events.ResultTTLSeconds == 0 {
		cfg.Events.ResultTTLSeconds = 3600
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RateLimit.Requests == 0 {
		cfg.Server.RateLimit.Requests = 50
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 100
	}
	if cfg.Server.SessionBuffer == 0 {
		cfg.Server.SessionBuffer = 64
	}

	// Worker defaults
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 1
	}
	if cfg.Worker.Queues == "" {
		cfg.Worker.Queues = "compute_pi,document_analysis"
	}
	if cfg.Worker.Group == "" {
		cfg.Worker.Group = "workers"
	}
	if cfg.Worker.PacingInterval == 0 {
		cfg.Worker.PacingInterval = 100 * time.Millisecond
	}
	if cfg.Worker.DownloadDir == "" {
		cfg.Worker.DownloadDir = "/data/books"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
