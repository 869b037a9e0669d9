// Package config loads runtime configuration for the WhistleDrop client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   server base URL
//	-i int      upload list refresh interval (seconds)
//	-t int      request timeout (seconds)
//	-x string   SOCKS5 proxy host:port
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "5s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://localhost:8000",
//	  "poll_interval": "5s",
//	  "request_timeout": "30s",
//	  "socks_proxy": "127.0.0.1:9150",
//	  "log_level": "warn"
//	}
package config
