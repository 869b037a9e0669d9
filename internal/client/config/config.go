package config

import "time"

// Config holds runtime settings for the WhistleDrop client.
//
// Fields:
//   - ServerURL: base URL of the backend, without the /api/v1 prefix.
//   - PollInterval: how often the upload list is refreshed while the upload
//     view is open.
//   - RequestTimeout: per-request HTTP timeout.
//   - SocksProxy: optional host:port of a SOCKS5 proxy (Tor).
//   - LogLevel: level for diagnostics written to stderr.
type Config struct {
	ServerURL      string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	SocksProxy     string
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8000"
	c.PollInterval = 5 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.SocksProxy = ""
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
