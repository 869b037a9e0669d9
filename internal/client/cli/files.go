package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/services"
)

const listTimeLayout = "2006-01-02 15:04"

// List prints the upload list as last fetched, newest first.
func (a *App) List(ctx context.Context) error {
	files := a.files.Files()
	if len(files) == 0 {
		fmt.Fprintln(a.out, "No files uploaded yet")
		return nil
	}
	for i, f := range files {
		fmt.Fprintln(a.out, formatFile(i+1, f))
	}
	return nil
}

func formatFile(n int, f api.FileInfo) string {
	line := fmt.Sprintf("%3d. %s  %s", n, f.CreatedAt.Local().Format(listTimeLayout), f.FileName)
	if f.Seen {
		line += "  [seen]"
	}
	return line
}

// Refresh re-fetches the list on demand.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.files.Refresh(ctx); err != nil {
		fmt.Fprintln(a.out, "Could not load files")
		return err
	}
	return a.List(ctx)
}

// Select sets the pending upload from args or, without args, from a prompt.
func (a *App) Select(ctx context.Context, args []string) error {
	path := strings.Join(args, " ")
	if path == "" {
		var err error
		path, err = getSimpleText(a.reader, "Path of the file to upload ("+services.SelectHint+")", a.out)
		if err != nil {
			return err
		}
	}

	if err := a.files.Select(path); err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}
	fmt.Fprintf(a.out, "Selected %s (%s)\n", path, services.SelectHint)
	return nil
}

// Upload sends the selection; a path argument selects it first.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if err := a.Select(ctx, args); err != nil {
			return err
		}
	}

	fmt.Fprintln(a.out, "Uploading...")
	if err := a.files.Upload(ctx); err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}
	fmt.Fprintln(a.out, "Upload successful")
	return a.List(ctx)
}

// Delete removes a file picked by list number or id after confirmation.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: delete <number|id>")
		return nil
	}

	f, ok := a.lookup(args[0])
	if !ok {
		fmt.Fprintln(a.out, "No such file:", args[0])
		return nil
	}

	question := fmt.Sprintf("Do you really want to delete the file %s? This action cannot be undone.", f.FileName)
	yes, err := confirm(a.reader, question, a.out)
	if err != nil {
		return err
	}
	if !yes {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	if err := a.files.Delete(ctx, f.ID); err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}
	fmt.Fprintln(a.out, "File deleted")
	return nil
}

func (a *App) lookup(ref string) (api.FileInfo, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		files := a.files.Files()
		if n >= 1 && n <= len(files) {
			return files[n-1], true
		}
		return api.FileInfo{}, false
	}
	return a.files.Find(ref)
}

// Watch subscribes to server push events for as long as the upload view is
// open. Polling keeps running alongside.
func (a *App) Watch(ctx context.Context) error {
	a.mu.Lock()
	viewCtx := a.viewCtx
	if viewCtx == nil {
		a.mu.Unlock()
		fmt.Fprintln(a.out, "Open the upload view first")
		return nil
	}
	if a.watching {
		a.mu.Unlock()
		fmt.Fprintln(a.out, "Already watching")
		return nil
	}
	a.watching = true
	a.mu.Unlock()

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		err := a.client.Watch(viewCtx, a.files.ApplyEvent)
		if err != nil {
			a.logger.Warn(viewCtx, "push channel closed", "error", err)
		}

		a.mu.Lock()
		if a.viewCtx == viewCtx {
			a.watching = false
		}
		a.mu.Unlock()
	}()

	fmt.Fprintln(a.out, "Watching for updates")
	return nil
}
