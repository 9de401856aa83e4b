package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cartkeeper/internal/flagx"
	"github.com/dmitrijs2005/cartkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from "zero", so a partial file only overrides what it
// names.
type JsonConfig struct {
	APIBaseURL            *string         `json:"api_base_url"`
	DatabasePath          *string         `json:"database_path"`
	RequestTimeout        *timex.Duration `json:"request_timeout"`
	RetryAttempts         *uint64         `json:"retry_attempts"`
	RetryBackoff          *timex.Duration `json:"retry_backoff"`
	IdentityCheckInterval *timex.Duration `json:"identity_check_interval"`
	LogLevel              *string         `json:"log_level"`
	LogFormat             *string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c/-config. It panics on read
// or decode errors; a missing flag leaves cfg untouched.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc JsonConfig) apply(cfg *Config) {
	if jc.APIBaseURL != nil {
		cfg.APIBaseURL = *jc.APIBaseURL
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RetryAttempts != nil {
		cfg.RetryAttempts = *jc.RetryAttempts
	}
	if jc.RetryBackoff != nil {
		cfg.RetryBackoff = jc.RetryBackoff.Duration
	}
	if jc.IdentityCheckInterval != nil {
		cfg.IdentityCheckInterval = jc.IdentityCheckInterval.Duration
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	if jc.LogFormat != nil {
		cfg.LogFormat = *jc.LogFormat
	}
}
