// Package client talks to the WhistleDrop REST API on behalf of the
// whistleblower client and, through Do, the journalist tool.
//
// # Overview
//
// Client is the transport contract used by the client services: login and
// passphrase registration, listing, uploading and deleting files, a liveness
// probe and the websocket push channel. HTTPClient implements it over
// net/http, optionally through a SOCKS5 proxy (see netx), reading the bearer
// token from a TokenSource on every request.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Non-2xx answers become *APIError
// carrying the status and the server's "detail" text; a 401 matches
// ErrUnauthorized with errors.Is, and 502/503/504 match ErrUnavailable.
package client
