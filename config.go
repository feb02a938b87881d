package sessionkit

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config groups all tunables for a [SessionStore]. Zero values are not
// usable directly; start from [DefaultConfig] and override.
type Config struct {
	Backend BackendConfig
	Storage StorageConfig
	Gate    GateConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// BackendConfig locates the external verification backend.
type BackendConfig struct {
	// BaseURL is the API prefix all auth routes hang off, e.g.
	// "http://localhost:5000/api".
	BaseURL string

	// Timeout bounds every gateway round trip. The original client contract
	// had no timeout; this is an additive guard, not observable behavior.
	Timeout time.Duration

	// UserAgent is sent with every request. Empty keeps Go's default.
	UserAgent string
}

// StorageConfig names the persisted session record.
type StorageConfig struct {
	// Key is the single record key shared by all tabs of one installation.
	// Absence of the key means logged out.
	Key string
}

// GateConfig configures the access gate.
type GateConfig struct {
	// LoginPath is where [Gate] redirects unauthenticated visitors.
	LoginPath string
}

// AuditConfig configures the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// MetricsConfig configures in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by a stock local deployment:
// backend on port 5000 under /api, ten-second request timeout, the
// "auth_user" record key, audit and metrics off.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Key: "auth_user",
		},
		Gate: GateConfig{
			LoginPath: "/login",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("Backend.BaseURL must be set")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return errors.New("Backend.BaseURL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Backend.BaseURL must use http or https")
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend.Timeout must not be negative")
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("Storage.Key must be set")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	return nil
}
