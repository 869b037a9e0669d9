package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/whistledrop/whistledrop/internal/api"
)

// wsURL maps the upload websocket endpoint onto ws:// or wss:// and carries
// the token as a query parameter, since the handshake cannot set headers from
// every client.
func (c *HTTPClient) wsURL(token string) (string, error) {
	u, err := url.Parse(c.URL("/upload/ws"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Watch streams push events to fn until ctx is cancelled or the connection
// drops. A cancelled ctx is not an error.
func (c *HTTPClient) Watch(ctx context.Context, fn func(api.Event)) error {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		return ErrUnauthorized
	}

	target, err := c.wsURL(token)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		NetDialContext:   c.dial,
		HandshakeTimeout: c.timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		var ev api.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}
