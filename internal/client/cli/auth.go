package cli

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/whistledrop/whistledrop/internal/common"
)

// Input and clipboard indirections, swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getPassphrase   = GetPassphrase
	confirm         = Confirm
	copyToClipboard = clipboard.WriteAll
)

const oneTimeWarning = "Write this passphrase down now. It is shown only once and cannot be recovered."

// Register asks the server for a new passphrase, shows it once, offers to
// copy it to the clipboard and opens the upload view.
func (a *App) Register(ctx context.Context) error {
	fmt.Fprintln(a.out, "Generating passphrase...")
	passphrase, err := a.auth.GeneratePassphrase(ctx)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Your passphrase:")
	fmt.Fprintln(a.out, "  "+passphrase)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, oneTimeWarning)

	ok, err := confirm(a.reader, "Copy it to the clipboard?", a.out)
	if err == nil && ok {
		if err := copyToClipboard(passphrase); err != nil {
			a.logger.Warn(ctx, "clipboard", "error", err)
			fmt.Fprintln(a.out, "Could not access the clipboard, copy the passphrase by hand.")
		} else {
			fmt.Fprintln(a.out, "Copied.")
		}
	}

	a.Navigate(ctx, RouteUpload)
	return nil
}

// Login reads a passphrase without echo and opens the upload view on success.
// The passphrase is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	passphrase, err := getPassphrase(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passphrase)

	fmt.Fprintln(a.out, "Logging in...")
	if err := a.auth.Login(ctx, passphrase); err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	fmt.Fprintln(a.out, "Login successful")
	a.Navigate(ctx, RouteUpload)
	return nil
}

// Logout drops the token and everything fetched with it.
func (a *App) Logout(ctx context.Context) error {
	a.Navigate(ctx, RouteLanding)
	a.bg.Wait()
	a.auth.Logout()
	a.files.Reset()
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
