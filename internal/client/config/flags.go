package config

import (
	"flag"
	"os"
	"time"

	"github.com/whistledrop/whistledrop/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-t", "-x", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.Var(flagx.DurationValue{Target: &cfg.PollInterval, Unit: time.Second}, "i", "upload list refresh interval (seconds or duration, e.g. 500ms)")
	fs.Var(flagx.DurationValue{Target: &cfg.RequestTimeout, Unit: time.Second}, "t", "request timeout (seconds or duration)")
	fs.StringVar(&cfg.SocksProxy, "x", cfg.SocksProxy, "SOCKS5 proxy host:port")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
