package config

import "time"

// Server holds the HTTP/WebSocket gateway configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	EnableCORS bool `mapstructure:"enable_cors"`
	Debug      bool `mapstructure:"debug"`

	// Task submission rate limiting (token bucket, requests per second)
	RateLimit RateLimit `mapstructure:"rate_limit"`

	// Per-session broadcast buffer; sessions that overflow it are dropped
	SessionBuffer int `mapstructure:"session_buffer" validate:"min=1"`
}

// RateLimit holds token bucket settings for task submissions.
type RateLimit struct {
	Requests float64 `mapstructure:"requests" validate:"gt=0"`
	Burst    int     `mapstructure:"burst" validate:"min=1"`
}
