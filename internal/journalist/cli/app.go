// Package cli implements the journalist tool's subcommands.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	clientcli "github.com/whistledrop/whistledrop/internal/client/cli"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/journalist/config"
	"github.com/whistledrop/whistledrop/internal/journalist/keystore"
	"github.com/whistledrop/whistledrop/internal/journalist/remote"
	"github.com/whistledrop/whistledrop/internal/journalist/services"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// PassphraseEnv may hold the admin passphrase for unattended runs.
const PassphraseEnv = "WHISTLEDROP_PASSPHRASE"

// Seams for tests.
var (
	getPassphrase = clientcli.GetPassphrase
	confirm       = clientcli.Confirm
	lookupEnv     = os.LookupEnv
	newRemote     = func(opts remote.Options, l logging.Logger) (services.Remote, error) {
		return remote.New(opts, l)
	}
)

// ErrUsage is returned for unknown subcommands and bad arguments.
var ErrUsage = errors.New("usage error")

const usage = `Usage: journalist [global flags] <command> [flags]

Commands:
  keygen [-n N] [-s BITS]   generate key pairs into the local keystore
  publish                   upload unpublished public keys to the server
  stock                     show local and server key counts
  fetch                     download files uploaded since the last fetch
  decrypt                   decrypt downloaded files
  cleanup [-y]              delete the keystore, downloads and decrypted files
  gensecret                 print a random secret for the server
  config -onion ADDR        store the server's onion address

Global flags:
  -c/-config FILE  -a URL  -x SOCKS  -t SECONDS  -r RETRIES
  -k KEYSTORE  -d DOWNLOAD_DIR  -o OUTPUT_DIR  -l LEVEL
`

type App struct {
	config *config.Config
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config) *App {
	l := logging.NewTextLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	return newApp(cfg, l, os.Stdin, os.Stdout)
}

func newApp(cfg *config.Config, l logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{config: cfg, logger: l, reader: bufio.NewReader(in), out: out}
}

// Run executes one subcommand. Errors have already been reported to the
// user when they reach the caller.
func (a *App) Run(ctx context.Context, cmd string, args []string) error {
	var err error
	switch cmd {
	case "keygen":
		err = a.keygen(ctx, args)
	case "publish":
		err = a.publish(ctx)
	case "stock":
		err = a.stock(ctx)
	case "fetch":
		err = a.fetch(ctx)
	case "decrypt":
		err = a.decrypt(ctx)
	case "cleanup":
		err = a.cleanup(ctx, args)
	case "gensecret":
		err = a.gensecret()
	case "config":
		err = a.configure(ctx, args)
	case "", "help", "-h", "-help", "--help":
		fmt.Fprint(a.out, usage)
		if cmd == "" {
			return ErrUsage
		}
		return nil
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n\n%s", cmd, usage)
		return ErrUsage
	}

	if err != nil && !errors.Is(err, ErrUsage) {
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}

func (a *App) openKeystore(ctx context.Context) (*keystore.Keystore, error) {
	ks, err := keystore.Open(ctx, a.config.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", a.config.KeystorePath, err)
	}
	return ks, nil
}

// connect resolves the server address, logs in with the admin passphrase
// and returns the ready client.
func (a *App) connect(ctx context.Context, ks *keystore.Keystore) (services.Remote, error) {
	addr, err := services.ServerAddress(ctx, ks.Metadata, a.config.ServerURL)
	if err != nil {
		return nil, err
	}

	r, err := newRemote(remote.Options{
		ServerURL:  addr,
		SocksProxy: a.config.SocksProxy,
		Timeout:    a.config.RequestTimeout,
		MaxRetries: a.config.MaxRetries,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	passphrase, err := a.passphrase()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(passphrase)

	a.logger.Debug(ctx, "logging in", "server", addr)
	if err := r.Login(ctx, string(passphrase)); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return r, nil
}

func (a *App) passphrase() ([]byte, error) {
	if v, ok := lookupEnv(PassphraseEnv); ok && strings.TrimSpace(v) != "" {
		return []byte(strings.TrimSpace(v)), nil
	}
	return getPassphrase(a.out)
}
