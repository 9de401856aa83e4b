// Package config loads runtime configuration for the cart CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables prefixed with CART_ (an optional .env file in the
//     working directory is loaded first and never overrides real variables).
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   base URL of the remote Cart API
//	-d string   path of the local SQLite database
//	-t int      request timeout (seconds)
//	-i int      identity check interval (seconds)
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations accept either strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8080/api",
//	  "database_path": "cart.db",
//	  "request_timeout": "10s",
//	  "retry_attempts": 2,
//	  "retry_backoff": "200ms",
//	  "identity_check_interval": "3s",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config
