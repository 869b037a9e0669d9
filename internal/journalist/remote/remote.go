// Package remote talks to the WhistleDrop server on behalf of the journalist
// tool. Every call is retried with exponential backoff while the server is
// unreachable or answers 5xx; Tor circuits drop often enough to need it.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/client/session"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// ErrNoNewFiles is returned by NewFiles when the server has nothing newer
// than the requested date.
var ErrNoNewFiles = errors.New("no new files")

// ErrKeyExists means the server already holds a public key with that id.
var ErrKeyExists = errors.New("public key already published")

// ErrArchiveTooLarge is returned when a new-files archive exceeds
// maxArchiveSize.
var ErrArchiveTooLarge = errors.New("archive too large")

// maxArchiveSize bounds a downloaded new-files archive.
var maxArchiveSize int64 = 1 << 30

type Options struct {
	ServerURL  string
	SocksProxy string
	Timeout    time.Duration
	MaxRetries uint64
	// BaseDelay is the first backoff interval; zero means one second.
	BaseDelay  time.Duration
}

type Remote struct {
	http    *client.HTTPClient
	session *session.Session
	logger  logging.Logger

	maxRetries uint64
	baseDelay  time.Duration
}

func New(opts Options, l logging.Logger) (*Remote, error) {
	sess := session.New()
	hc, err := client.NewHTTPClient(NormalizeURL(opts.ServerURL), sess, opts.SocksProxy, opts.Timeout)
	if err != nil {
		return nil, err
	}

	delay := opts.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Remote{
		http:       hc,
		session:    sess,
		logger:     l.With("module", "remote"),
		maxRetries: opts.MaxRetries,
		baseDelay:  delay,
	}, nil
}

// NormalizeURL adds the http scheme to bare host names such as onion
// addresses. Tor provides transport encryption for .onion hosts.
func NormalizeURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, client.ErrUnavailable) {
		return true
	}
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusInternalServerError
}

func (r *Remote) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(r.maxRetries, retry.WithCappedDuration(30*time.Second, retry.NewExponential(r.baseDelay)))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && retryable(err) {
			r.logger.Warn(ctx, "request failed, retrying", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// Login exchanges the passphrase for a token kept for later calls.
func (r *Remote) Login(ctx context.Context, passphrase string) error {
	var resp *api.TokenResponse
	err := r.do(ctx, "login", func(ctx context.Context) error {
		var err error
		resp, err = r.http.Login(ctx, passphrase)
		return err
	})
	if err != nil {
		return err
	}
	r.session.SetToken(resp.AccessToken)
	return nil
}

// PublishKey uploads one PEM public key under id.
func (r *Remote) PublishKey(ctx context.Context, id string, pemData []byte) error {
	body, contentType, err := client.MultipartFile("file", fmt.Sprintf("public_key_%s.pem", id), bytes.NewReader(pemData))
	if err != nil {
		return err
	}

	err = r.do(ctx, "publish", func(ctx context.Context) error {
		return r.http.PostMultipart(ctx, "/publickey/"+url.PathEscape(id), body, contentType)
	})

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrKeyExists, id)
	}
	return err
}

// KeyStock returns how many published keys are still unused.
func (r *Remote) KeyStock(ctx context.Context) (int64, error) {
	var out api.KeyStockResponse
	err := r.do(ctx, "key stock", func(ctx context.Context) error {
		return r.http.GetJSON(ctx, "/publickey/", &out)
	})
	if err != nil {
		return 0, err
	}
	return out.Active, nil
}

// NewFiles downloads the zip of files uploaded strictly after since, which
// the server reads as midnight UTC.
func (r *Remote) NewFiles(ctx context.Context, since time.Time) ([]byte, error) {
	target := r.http.URL("/download/new-files/") + "?" + url.Values{"since_date": {since.Format(common.DateLayout)}}.Encode()

	var data []byte
	err := r.do(ctx, "new files", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := r.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
		if err != nil {
			return fmt.Errorf("%w: %w", client.ErrUnavailable, err)
		}
		if int64(len(data)) > maxArchiveSize {
			data = nil
			return fmt.Errorf("%w: over %d bytes", ErrArchiveTooLarge, maxArchiveSize)
		}
		return nil
	})

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNoNewFiles
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
