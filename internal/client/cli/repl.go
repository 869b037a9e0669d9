package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Route() string
	Navigate(ctx context.Context, route string) string
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	Refresh(ctx context.Context) error
	Select(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Watch(ctx context.Context) error
}

var viewCommands = map[string]map[string]bool{
	RouteLanding: {
		"login": true, "register": true,
	},
	RouteUpload: {
		"l": true, "list": true, "refresh": true, "select": true, "upload": true,
		"delete": true, "watch": true, "logout": true,
	},
}

const (
	helpLanding = "Available commands: login, register, go <route>, exit"
	helpUpload  = "Available commands: (l)ist, refresh, select [path], upload [path], delete <number|id>, watch, logout, go <route>, exit"
)

// runREPL starts a simple read-eval-print loop for the WhistleDrop client.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Which commands are accepted depends on the
// current route:
//
//	/ (landing):
//	  - login          log in with an existing passphrase
//	  - register       generate a new passphrase
//
//	/upload:
//	  - list | l       list uploaded files
//	  - refresh        re-fetch the list now
//	  - select [path]  choose the file to upload
//	  - upload [path]  upload the selection (or path)
//	  - delete <n|id>  delete a file after confirmation
//	  - watch          subscribe to live updates
//	  - logout         drop the session
//
//	anywhere:
//	  - help, go <route>, exit | quit
//
// Any errors returned by command handlers are ignored here; handlers report
// to the user themselves. The loop exits on EOF, on "exit"/"quit" or when
// ctx is done.
func runREPL(ctx context.Context, a execIface, promptFn func() string, reader *bufio.Reader, out io.Writer) {
	for ctx.Err() == nil {
		fmt.Fprint(out, promptFn())
		line, err := readLine(reader)
		if err != nil {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		route := a.Route()

		switch cmd {
		case "help":
			if route == RouteUpload {
				fmt.Fprintln(out, helpUpload)
			} else {
				fmt.Fprintln(out, helpLanding)
			}
			continue

		case "go":
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: go <route>")
				continue
			}
			a.Navigate(ctx, args[0])
			continue

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		}

		if !viewCommands[route][cmd] {
			fmt.Fprintln(out, "Unknown command:", cmd)
			continue
		}

		switch cmd {
		case "login":
			_ = a.Login(ctx)
		case "register":
			_ = a.Register(ctx)
		case "l", "list":
			_ = a.List(ctx)
		case "refresh":
			_ = a.Refresh(ctx)
		case "select":
			_ = a.Select(ctx, args)
		case "upload":
			_ = a.Upload(ctx, args)
		case "delete":
			_ = a.Delete(ctx, args)
		case "watch":
			_ = a.Watch(ctx)
		case "logout":
			_ = a.Logout(ctx)
		}
	}
}
