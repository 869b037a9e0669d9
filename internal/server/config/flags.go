package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/whistledrop/whistledrop/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8000")
//	-d string   PostgreSQL DSN
//	-s string   secret key
//	-t value    access token validity, minutes or a duration such as 30s
//	-S string   storage driver: fs | s3
//	-f string   upload directory for the fs driver
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-o string   comma separated CORS origins
//	-A string   admin passphrase
//	-m int      max upload size, MiB (positive)
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-S", "-f", "-u", "-p", "-b", "-g", "-e", "-o", "-A", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.Var(flagx.DurationValue{Target: &config.AccessTokenValidityDuration, Unit: time.Minute}, "t", "access token validity (minutes or duration)")

	fs.StringVar(&config.StorageDriver, "S", config.StorageDriver, "storage driver (fs|s3)")
	fs.StringVar(&config.FilePath, "f", config.FilePath, "upload directory (fs driver)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.Func("o", "comma separated CORS origins", func(s string) error {
		config.AllowedOrigins = splitOrigins(s)
		return nil
	})

	fs.StringVar(&config.AdminPassphrase, "A", config.AdminPassphrase, "admin passphrase")

	fs.Func("m", "max upload size (in MiB)", func(s string) error {
		mib, err := flagx.PositiveInt64(s)
		if err != nil {
			return err
		}
		config.MaxUploadSize = mib << 20
		return nil
	})

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

func splitOrigins(s string) []string {
	out := make([]string, 0)
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
