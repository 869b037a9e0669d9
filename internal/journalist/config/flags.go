package config

import (
	"flag"
	"os"
	"time"

	"github.com/whistledrop/whistledrop/internal/flagx"
)

// GlobalValueFlags are the flags accepted before the subcommand, all of
// which take a value.
var GlobalValueFlags = []string{"-c", "-config", "-a", "-x", "-t", "-r", "-k", "-d", "-o", "-l"}

// parseFlags reads the global flags that precede the subcommand.
//
//	-a string   server base URL
//	-x string   SOCKS5 proxy host:port ("" for a direct connection)
//	-t value    request timeout, seconds or a duration such as 45s
//	-r int      retries on transport errors and 5xx answers
//	-k string   keystore file
//	-d string   download directory
//	-o string   output directory for decrypted files
//	-l string   log level
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(globalArgs(os.Args[1:]), []string{"-a", "-x", "-t", "-r", "-k", "-d", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.SocksProxy, "x", cfg.SocksProxy, "SOCKS5 proxy host:port")
	fs.Var(flagx.DurationValue{Target: &cfg.RequestTimeout, Unit: time.Second}, "t", "request timeout (seconds or duration)")
	fs.Uint64Var(&cfg.MaxRetries, "r", cfg.MaxRetries, "retries on transport errors")
	fs.StringVar(&cfg.KeystorePath, "k", cfg.KeystorePath, "keystore file")
	fs.StringVar(&cfg.DownloadDir, "d", cfg.DownloadDir, "download directory")
	fs.StringVar(&cfg.OutputDir, "o", cfg.OutputDir, "output directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// globalArgs cuts args at the subcommand so its own flags are not mistaken
// for global ones.
func globalArgs(args []string) []string {
	cmd, rest := flagx.Subcommand(args, GlobalValueFlags)
	if cmd == "" {
		return args
	}
	return args[:len(args)-len(rest)-1]
}
