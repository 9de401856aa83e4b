package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CART"

// dotenvLoad is a seam for tests.
var dotenvLoad = func() error { return godotenv.Load() }

// parseEnv overlays cfg with CART_* variables. Unset variables leave the
// current value in place. Malformed values panic, like the other loaders.
func parseEnv(cfg *Config) {
	// .env is optional.
	_ = dotenvLoad()

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		panic(err)
	}
}
