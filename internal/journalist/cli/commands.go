package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/journalist/services"
)

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) keygen(ctx context.Context, args []string) error {
	fs := a.flagSet("keygen")
	n := fs.Int("n", 1, "number of key pairs")
	bits := fs.Int("s", cryptox.DefaultKeyBits, "key size in bits")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	fmt.Fprintf(a.out, "Generating %d key pair(s) of %d bits...\n", *n, *bits)
	ids, err := services.NewKeyService(ks.KeyPairs, a.logger).Generate(ctx, *n, *bits)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d key pair(s) stored in %s. Run 'publish' to upload them.\n", len(ids), a.config.KeystorePath)
	return nil
}

func (a *App) publish(ctx context.Context) error {
	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	keys := services.NewKeyService(ks.KeyPairs, a.logger)
	st, err := keys.Stock(ctx, nil)
	if err != nil {
		return err
	}
	pending := st.Local - st.Published
	if pending == 0 {
		fmt.Fprintln(a.out, "No unpublished keys. Run 'keygen' first.")
		return nil
	}
	fmt.Fprintf(a.out, "%d key(s) to publish.\n", pending)

	r, err := a.connect(ctx, ks)
	if err != nil {
		return err
	}

	res, err := keys.Publish(ctx, r)
	fmt.Fprintf(a.out, "Published: %d\n", res.Published)
	if res.AlreadyKnown > 0 {
		fmt.Fprintf(a.out, "Already on server: %d\n", res.AlreadyKnown)
	}
	return err
}

func (a *App) stock(ctx context.Context) error {
	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	r, err := a.connect(ctx, ks)
	if err != nil {
		return err
	}

	st, err := services.NewKeyService(ks.KeyPairs, a.logger).Stock(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Local key pairs: %d (published %d)\n", st.Local, st.Published)
	fmt.Fprintf(a.out, "Unused keys on server: %d\n", st.ServerActive)
	if st.ServerActive == 0 {
		fmt.Fprintln(a.out, "Uploads are refused until more keys are published.")
	}
	return nil
}

func (a *App) fetch(ctx context.Context) error {
	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	r, err := a.connect(ctx, ks)
	if err != nil {
		return err
	}

	res, err := services.NewFetchService(r, ks.Metadata, a.config.DownloadDir, a.logger).Fetch(ctx)
	if err != nil {
		return err
	}

	since := res.Since.Format(common.DateLayout)
	if res.Files == 0 {
		fmt.Fprintf(a.out, "No new files found since %s\n", since)
		return nil
	}
	fmt.Fprintf(a.out, "Found %d new file(s) since %s\n", res.Files, since)
	fmt.Fprintf(a.out, "All files have been downloaded to %s\n", res.Dir)
	return nil
}

func (a *App) decrypt(ctx context.Context) error {
	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	fmt.Fprintf(a.out, "Decrypting files from %s to %s\n", a.config.DownloadDir, a.config.OutputDir)
	svc := services.NewDecryptService(ks.KeyPairs, ks.Metadata, a.config.DownloadDir, a.config.OutputDir, a.logger)
	res, err := svc.Decrypt(ctx)
	for _, name := range res.Written {
		fmt.Fprintln(a.out, "  "+name)
	}
	fmt.Fprintf(a.out, "Decrypted: %d, skipped: %d, failed: %d\n", res.Decrypted, res.Skipped, res.Failed)
	return err
}

func (a *App) cleanup(ctx context.Context, args []string) error {
	fs := a.flagSet("cleanup")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	if !*yes {
		q := fmt.Sprintf("Delete %s, %s and %s? Private keys cannot be recovered.",
			a.config.KeystorePath, a.config.DownloadDir, a.config.OutputDir)
		ok, err := confirm(a.reader, q, a.out)
		if err != nil || !ok {
			fmt.Fprintln(a.out, "Aborted")
			return nil
		}
	}

	removed, err := services.Cleanup(a.config.KeystorePath, a.config.DownloadDir, a.config.OutputDir)
	for _, p := range removed {
		fmt.Fprintln(a.out, "Removed", p)
	}
	if err == nil && len(removed) == 0 {
		fmt.Fprintln(a.out, "Nothing to remove")
	}
	a.logger.Info(ctx, "cleanup", "removed", len(removed))
	return err
}

func (a *App) gensecret() error {
	s, err := services.GenerateSecret()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, s)
	return nil
}

func (a *App) configure(ctx context.Context, args []string) error {
	fs := a.flagSet("config")
	onion := fs.String("onion", "", "server onion address")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	ks, err := a.openKeystore(ctx)
	if err != nil {
		return err
	}
	defer ks.Close()

	if *onion == "" {
		addr, err := services.ServerAddress(ctx, ks.Metadata, a.config.ServerURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Server:", addr)
		return nil
	}

	if err := services.SetServerAddress(ctx, ks.Metadata, *onion); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Server address saved:", *onion)
	return nil
}
