// Package config handles configuration for the journalist tool: defaults,
// an optional JSON file (-c / -config) and command-line flags placed before
// the subcommand.
package config

import "time"

// Config holds runtime settings for the journalist tool.
//
// Fields:
//   - ServerURL: base URL of the backend. An onion address stored with
//     "config -onion" takes precedence at run time.
//   - SocksProxy: SOCKS5 proxy host:port (Tor Browser listens on 9150);
//     empty connects directly.
//   - RequestTimeout: per-request HTTP timeout.
//   - MaxRetries: retries after a transport error or 5xx answer.
//   - KeystorePath: SQLite file holding key pairs and fetch state.
//   - DownloadDir: where fetched archives are extracted.
//   - OutputDir: where decrypted PDFs are written.
type Config struct {
	ServerURL      string
	SocksProxy     string
	RequestTimeout time.Duration
	MaxRetries     uint64
	KeystorePath   string
	DownloadDir    string
	OutputDir      string
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8000"
	c.SocksProxy = "127.0.0.1:9150"
	c.RequestTimeout = 30 * time.Second
	c.MaxRetries = 3
	c.KeystorePath = "whistledrop-keys.db"
	c.DownloadDir = "downloads"
	c.OutputDir = "decrypted_files"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
