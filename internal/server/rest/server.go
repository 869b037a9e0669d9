// Package rest exposes the WhistleDrop HTTP API under /api/v1: passphrase
// auth, the whistleblower upload list and the admin routes used by the
// journalist tool.
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/logging"
	"github.com/whistledrop/whistledrop/internal/server/models"
	"github.com/whistledrop/whistledrop/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context) (*services.Session, error)
	Login(ctx context.Context, passphrase string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type UploadService interface {
	Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*models.File, error)
	List(ctx context.Context, userID string) ([]*models.File, error)
	Delete(ctx context.Context, userID, fileID string) (*models.File, error)
}

type JournalistService interface {
	AddPublicKey(ctx context.Context, id string, pemData []byte) error
	ActiveKeys(ctx context.Context) (int64, error)
	Download(ctx context.Context, fileID string) (*services.Download, error)
	NewFiles(ctx context.Context, since time.Time) ([]*models.FileWithKey, error)
	WriteArchive(ctx context.Context, w io.Writer, files []*models.FileWithKey) (int, error)
}

// PushHub upgrades a request to a websocket bound to one user.
type PushHub interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

type Options struct {
	Address        string
	AllowedOrigins []string
	MaxUploadSize  int64
}

type Server struct {
	address        string
	allowedOrigins map[string]bool
	maxUploadSize  int64
	users          UserService
	uploads        UploadService
	journalist     JournalistService
	hub            PushHub
	logger         logging.Logger
}

func NewServer(o Options, l logging.Logger, us UserService, up UploadService, js JournalistService, hub PushHub) *Server {
	origins := make(map[string]bool, len(o.AllowedOrigins))
	for _, origin := range o.AllowedOrigins {
		origins[origin] = true
	}
	return &Server{
		address:        o.Address,
		allowedOrigins: origins,
		maxUploadSize:  o.MaxUploadSize,
		users:          us,
		uploads:        up,
		journalist:     js,
		hub:            hub,
		logger:         l.With("module", "rest_server"),
	}
}

// Handler returns the complete HTTP handler including CORS and request
// logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(common.APIPrefix, s.handleRoot).Methods(http.MethodGet)

	api := r.PathPrefix(common.APIPrefix).Subrouter()
	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodGet)

	api.HandleFunc("/upload/", s.requireUser(s.handleListUploads)).Methods(http.MethodGet)
	api.HandleFunc("/upload/", s.requireUser(s.handleUpload)).Methods(http.MethodPost)
	api.HandleFunc("/upload/ws", s.requireUser(s.handleWatch)).Methods(http.MethodGet)
	api.HandleFunc("/upload/{id}", s.requireUser(s.handleDeleteUpload)).Methods(http.MethodDelete)

	api.HandleFunc("/publickey/", s.requireAdmin(s.handleKeyStock)).Methods(http.MethodGet)
	api.HandleFunc("/publickey/{id}", s.requireAdmin(s.handleAddPublicKey)).Methods(http.MethodPost)

	api.HandleFunc("/download/new-files/", s.requireAdmin(s.handleNewFiles)).Methods(http.MethodGet)
	api.HandleFunc("/download/{id}", s.requireAdmin(s.handleDownload)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return s.withLogging(s.withCORS(r))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(context.Background(), "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
