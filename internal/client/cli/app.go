package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/client/config"
	"github.com/whistledrop/whistledrop/internal/client/services"
	"github.com/whistledrop/whistledrop/internal/client/session"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// Routes of the client. Anything else redirects to RouteLanding.
const (
	RouteLanding = "/"
	RouteUpload  = "/upload"
)

type App struct {
	config *config.Config
	logger logging.Logger
	client client.Client
	auth   *services.AuthService
	files  *services.FileService
	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	route    string
	viewCtx  context.Context
	stopView context.CancelFunc
	watching bool
	bg       sync.WaitGroup
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, logging.ParseLevel(c.LogLevel))
	sess := session.New()

	apiClient, err := client.NewHTTPClient(c.ServerURL, sess, c.SocksProxy, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return newApp(c, apiClient, sess, logger, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, cl client.Client, sess *session.Session, l logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		logger: l,
		client: cl,
		auth:   services.NewAuthService(cl, sess, l),
		files:  services.NewFileService(cl, l),
		reader: bufio.NewReader(in),
		out:    out,
		route:  RouteLanding,
	}
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to WhistleDrop (type 'help' for commands)")
	if err := a.client.Ping(ctx); err != nil {
		a.logger.Warn(ctx, "server not reachable", "url", a.config.ServerURL, "error", err)
	}

	runREPL(ctx, a, a.prompt, a.reader, a.out)

	a.leaveView()
	a.bg.Wait()
}

func (a *App) prompt() string {
	return fmt.Sprintf("whistledrop %s> ", a.Route())
}

func (a *App) Route() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route
}

func (a *App) isLoggedIn() bool {
	return a.auth.IsAuthenticated()
}

// Navigate switches views. The upload view requires a session; entering it
// starts the background refresh and leaving it stops the refresh and any
// push watcher.
func (a *App) Navigate(ctx context.Context, route string) string {
	if route != RouteUpload || !a.isLoggedIn() {
		route = RouteLanding
	}

	if a.Route() == route {
		return route
	}

	a.leaveView()

	a.mu.Lock()
	a.route = route
	a.mu.Unlock()

	if route == RouteUpload {
		a.enterUploadView(ctx)
	}
	return route
}

func (a *App) enterUploadView(ctx context.Context) {
	viewCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.viewCtx = viewCtx
	a.stopView = cancel
	a.mu.Unlock()

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		a.files.Poll(viewCtx, a.config.PollInterval)
	}()
}

func (a *App) leaveView() {
	a.mu.Lock()
	stop := a.stopView
	a.viewCtx = nil
	a.stopView = nil
	a.watching = false
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
}
