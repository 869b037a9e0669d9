// Package netx builds the HTTP clients used by the whistleblower client and
// the journalist tool, optionally routed through a SOCKS5 proxy such as Tor.
package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// proxySOCKS5 is a seam for tests.
var proxySOCKS5 = proxy.SOCKS5

// DialContextFunc matches net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer returns a dial function that goes through the SOCKS5 proxy at
// socksAddr, or nil when socksAddr is empty (dial directly).
func Dialer(socksAddr string) (DialContextFunc, error) {
	if socksAddr == "" {
		return nil, nil
	}

	dialer, err := proxySOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	ctxDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	return ctxDialer.DialContext, nil
}

// NewHTTPClient returns a client with the given timeout. When socksAddr is
// non-empty every connection is dialled through that SOCKS5 proxy, which also
// resolves host names so .onion addresses work.
func NewHTTPClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	dial, err := Dialer(socksAddr)
	if err != nil {
		return nil, err
	}
	if dial != nil {
		transport.Proxy = nil
		transport.DialContext = dial
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
