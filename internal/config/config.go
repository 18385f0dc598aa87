package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all gateway configuration, loaded from environment variables.
type Config struct {
	// Mode selects the runtime mode: "ingress" or "egress".
	Mode string `env:"GSM_MODE" envDefault:"ingress"`

	// Server
	Host string `env:"GSM_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"GSM_PORT" envDefault:"8080"`

	// Bus
	NatsURL string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	// Redis (optional — alternative idempotency backend)
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Environment and tenancy
	Env         string `env:"GREENTIC_ENV" envDefault:"dev"`
	Tenant      string `env:"GSM_TENANT" envDefault:"default"`
	Platform    string `env:"GSM_PLATFORM"`
	DefaultTeam string `env:"GSM_DEFAULT_TEAM" envDefault:"default"`

	// Ingress verification
	HMACSecret     string `env:"INGRESS_HMAC_SECRET"`
	HMACHeader     string `env:"INGRESS_HMAC_HEADER" envDefault:"x-signature"`
	BearerToken    string `env:"INGRESS_BEARER"`
	WebexSigHeader string `env:"WEBEX_SIG_HEADER" envDefault:"X-Webex-Signature"`
	WebexSigAlgo   string `env:"WEBEX_SIG_ALGO" envDefault:"sha1"`

	// Rate limiting
	IngressRateCap    int     `env:"INGRESS_RATE_CAP" envDefault:"60"`
	IngressRateRefill float64 `env:"INGRESS_RATE_REFILL" envDefault:"30"`
	EgressRateCap     int     `env:"EGRESS_RATE_CAP" envDefault:"20"`
	EgressRateRefill  float64 `env:"EGRESS_RATE_REFILL" envDefault:"10"`

	// Idempotency
	IdempotencyNamespace string `env:"IDEMPOTENCY_NAMESPACE" envDefault:"gsm_idempotency"`
	IdempotencyTTLHours  int    `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`
	IdempotencyBackend   string `env:"IDEMPOTENCY_BACKEND" envDefault:"nats"`

	// Adapter packs
	PackRoot string `env:"GSM_PACK_ROOT" envDefault:"packs"`

	// Collaborators
	RunnerURL      string `env:"RUNNER_URL"`
	OAuthBrokerURL string `env:"OAUTH_BROKER_URL"`

	// Egress delivery
	EgressMaxRetries int               `env:"EGRESS_MAX_RETRIES" envDefault:"5"`
	EgressEndpoints  map[string]string `env:"EGRESS_ENDPOINTS"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telemetry
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsPath  string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdempotencyTTL returns the idempotency window as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLHours) * time.Hour
}
