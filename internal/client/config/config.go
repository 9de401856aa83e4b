package config

import "time"

// Config holds runtime settings for the cart client.
//
// Fields:
//   - APIBaseURL: base URL of the remote Cart API (e.g. http://127.0.0.1:8080/api).
//   - DatabasePath: SQLite file used as local durable storage.
//   - RequestTimeout: per-request timeout for remote calls.
//   - RetryAttempts / RetryBackoff: retry budget for transient API failures.
//   - IdentityCheckInterval: how often the CLI looks for a changed login.
//   - LogLevel / LogFormat: logging.Options.
type Config struct {
	APIBaseURL            string        `envconfig:"API_BASE_URL"`
	DatabasePath          string        `envconfig:"DATABASE_PATH"`
	RequestTimeout        time.Duration `envconfig:"REQUEST_TIMEOUT"`
	RetryAttempts         uint64        `envconfig:"RETRY_ATTEMPTS"`
	RetryBackoff          time.Duration `envconfig:"RETRY_BACKOFF"`
	IdentityCheckInterval time.Duration `envconfig:"IDENTITY_CHECK_INTERVAL"`
	LogLevel              string        `envconfig:"LOG_LEVEL"`
	LogFormat             string        `envconfig:"LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080/api"
	c.DatabasePath = "cart.db"
	c.RequestTimeout = 10 * time.Second
	c.RetryAttempts = 2
	c.RetryBackoff = 200 * time.Millisecond
	c.IdentityCheckInterval = 3 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config from defaults, then overlays the JSON file
// (if any), the environment and finally command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
