// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated once in bootstrap and passed down explicitly; there
// is no package-level configuration state.
type Config struct {
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// StorageBackend selects where artifacts live: fs, gcs or memory.
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"fs"`
	StorageDir     string `envconfig:"STORAGE_DIR" default:"./data"`
	GCSBucket      string `envconfig:"GCS_BUCKET"`
	GCSCredentials string `envconfig:"GCS_CREDENTIALS_FILE"`

	// StampCommand is the external rendering executable invoked by the
	// finalize protocol.
	StampCommand string `envconfig:"STAMP_COMMAND" required:"true"`

	MaxUploadBytes int `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`

	// Public-link brute-force lockout.
	LimiterWindow   time.Duration `envconfig:"LIMITER_WINDOW" default:"15m"`
	LimiterMaxFails int           `envconfig:"LIMITER_MAX_FAILS" default:"5"`
	LimiterBlockFor time.Duration `envconfig:"LIMITER_BLOCK_FOR" default:"15m"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("inkseal", &cfg); err != nil {
		return nil, err
	}
	switch cfg.StorageBackend {
	case "fs", "memory":
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, errors.New("config: GCS_BUCKET required for gcs backend")
		}
	default:
		return nil, errors.New("config: unknown storage backend " + cfg.StorageBackend)
	}
	return &cfg, nil
}
