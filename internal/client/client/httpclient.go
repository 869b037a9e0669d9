package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/netx"
)

// maxErrorBody bounds how much of an error answer is read for its detail.
const maxErrorBody = 64 << 10

type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	dial    netx.DialContextFunc
	tokens  TokenSource
	timeout time.Duration
}

// NewHTTPClient builds a client for the server at serverURL. socksAddr may be
// empty to connect directly.
func NewHTTPClient(serverURL string, tokens TokenSource, socksAddr string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}

	hc, err := netx.NewHTTPClient(socksAddr, timeout)
	if err != nil {
		return nil, err
	}
	dial, err := netx.Dialer(socksAddr)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{baseURL: u, http: hc, dial: dial, tokens: tokens, timeout: timeout}, nil
}

// URL resolves an API path such as "/upload/" against the server address.
func (c *HTTPClient) URL(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + common.APIPrefix + path
	return u.String()
}

// Do sends req with the bearer token attached. Non-2xx answers are returned
// as *APIError with the body already consumed and closed.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var e api.ErrorResponse
	if json.Unmarshal(body, &e) == nil {
		apiErr.Detail = e.Detail
	}
	return apiErr
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetJSON decodes the answer to GET path into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) Login(ctx context.Context, passphrase string) (*api.TokenResponse, error) {
	var out api.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", api.LoginRequest{Passphrase: passphrase}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Register(ctx context.Context) (*api.TokenResponse, error) {
	var out api.TokenResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/register", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListFiles(ctx context.Context) ([]api.FileInfo, error) {
	var out []api.FileInfo
	if err := c.doJSON(ctx, http.MethodGet, "/upload/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteFile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/upload/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/", nil, nil)
}

// UploadFile posts the file at path as the multipart field "file". The part's
// content type is guessed from the extension; the server does the checking.
func (c *HTTPClient) UploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	body, contentType, err := MultipartFile("file", filepath.Base(path), f)
	if err != nil {
		return err
	}
	return c.PostMultipart(ctx, "/upload/", body, contentType)
}

// PostMultipart sends a prepared multipart body to path.
func (c *HTTPClient) PostMultipart(ctx context.Context, path string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// MultipartFile encodes r as a single file part named field.
func MultipartFile(field, fileName string, r io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	partType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if partType == "" {
		partType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": field, "filename": fileName}))
	h.Set("Content-Type", partType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
