// Package server wires the WhistleDrop backend together: database,
// migrations, blob storage, services, the push hub and the REST server, and
// runs them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/whistledrop/whistledrop/internal/logging"
	"github.com/whistledrop/whistledrop/internal/server/config"
	"github.com/whistledrop/whistledrop/internal/server/hub"
	"github.com/whistledrop/whistledrop/internal/server/repositories/repomanager"
	"github.com/whistledrop/whistledrop/internal/server/rest"
	"github.com/whistledrop/whistledrop/internal/server/services"
	"github.com/whistledrop/whistledrop/internal/server/storage"
)

// seams for tests
var (
	openDB               = repomanager.OpenPostgres
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	newStore             = storage.New
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	hub    *hub.Hub
	rest   *rest.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	h := hub.New(logger)
	us := services.NewUserService(db, rm, c)
	ups := services.NewUploadService(db, rm, store, h, logger)
	js := services.NewJournalistService(db, rm, store, h, logger)

	if c.AdminPassphrase != "" {
		admin, err := us.EnsureAdmin(ctx, c.AdminPassphrase)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("admin init error: %w", err)
		}
		logger.Info(ctx, "admin account ready", "user_id", admin.ID)
	}

	srv := rest.NewServer(rest.Options{
		Address:        c.HTTPAddr,
		AllowedOrigins: c.AllowedOrigins,
		MaxUploadSize:  c.MaxUploadSize,
	}, logger, us, ups, js, h)

	return &App{config: c, logger: logger, db: db, hub: h, rest: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.rest.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
