package config

// Streams holds the event log connection and consumer group settings.
type Streams struct {
	// Redis connection URL, e.g. redis://localhost:6379/0
	URL string `mapstructure:"url" validate:"required"`

	// Stream the task event pipeline runs on
	Stream string `mapstructure:"stream" validate:"required"`

	// Consumer group name for the service-side dispatcher
	Group string `mapstructure:"group" validate:"required"`

	// Consumer name within the group; generated per process when empty so
	// multiple service instances can join the same group
	Consumer string `mapstructure:"consumer"`

	// Read blocking time and batch size
	BlockMS int `mapstructure:"block_ms" validate:"min=0"`
	Count   int `mapstructure:"count" validate:"min=1"`

	// Redelivery of entries orphaned in another consumer's pending set
	ReclaimPending bool `mapstructure:"reclaim_pending"`
	ReclaimIdleMS  int  `mapstructure:"reclaim_idle_ms" validate:"min=0"`

	// Connection behavior
	MaxConnections   int `mapstructure:"max_connections" validate:"min=1"`
	SocketTimeoutSec int `mapstructure:"socket_timeout_sec" validate:"min=1"`

	// Optional stream trimming; zero disables
	MaxLen int64 `mapstructure:"max_len" validate:"min=0"`
}

// Events holds event handler policy settings.
type Events struct {
	// Minimum percentage change before a progress update is persisted.
	// Terminal transitions are always persisted.
	StatusDelta float64 `mapstructure:"status_delta" validate:"gt=0,lte=1"`

	// Default result TTL applied when the reported result carries none
	ResultTTLSeconds int `mapstructure:"result_ttl_seconds" validate:"min=0"`
}
