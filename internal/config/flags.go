package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/offsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags. It
// only looks at the flags it knows about (see flagx.FilterArgs) and panics
// on malformed values.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-a", "-i", "-g", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local queue database")
	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL mutations are replayed against")
	fs.StringVar(&cfg.HealthCheckGRPCAddr, "g", cfg.HealthCheckGRPCAddr, "gRPC health endpoint (host:port)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
