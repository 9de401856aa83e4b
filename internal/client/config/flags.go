package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cartkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   API base URL
//	-d string   database path
//	-t int      request timeout in seconds
//	-i int      identity check interval in seconds
//	-l string   log level
//
// Only these flags are looked at (see flagx.FilterArgs); parse errors panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the cart API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	interval := fs.Int("i", int(cfg.IdentityCheckInterval.Seconds()), "identity check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only touch durations when given, so sub-second defaults survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "i":
			cfg.IdentityCheckInterval = time.Duration(*interval) * time.Second
		}
	})
}
