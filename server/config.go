package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Config locates the control-plane proxy and identifies this process to it.
type Config struct {
	// WebSocketURL is the local proxy endpoint.
	WebSocketURL string `env:"GAMELIFT_WEBSOCKET_URL" envDefault:"ws://127.0.0.1:5757"`

	// ProcessID identifies this process on the transport handshake.
	// Generated when unset.
	ProcessID string `env:"GAMELIFT_PROCESS_ID"`

	// HealthCheckInterval is the health-reporting cadence.
	HealthCheckInterval time.Duration `env:"GAMELIFT_HEALTHCHECK_INTERVAL" envDefault:"60s"`
}

// LoadConfig reads Config from the environment, falling back to defaults
// suitable for local development.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment config: %w", err)
	}
	if cfg.ProcessID == "" {
		cfg.ProcessID = "process-" + uuid.NewString()
	}
	return cfg, nil
}
