package singleinstance

// Single-instance ownership and run-once delegation. The resident process
// owns a loopback TCP port; later invocations detect it and delegate the
// capture instead of starting a second resident.

import (
	"context"
)

// Server owns the TCP endpoint and answers run-once capture requests.
type Server interface {
	// Start binds the first port of the configured loopback range and
	// begins accepting client requests. Fails when the port is taken.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn is one delegated capture request plus its response channel.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess reports a finished cycle. url carries the chosen
	// upload URL and may be empty when the capture was saved locally.
	RespondSuccess(url string) error
	// RespondError sends a human-readable failure message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request is a single run-once capture request.
type Request struct {
	// PrintURL asks the resident to send the URL back for stdout printing
	// instead of copying it to the resident's clipboard.
	PrintURL bool
}

// Client delegates a run-once capture to a resident server if one exists.
type Client interface {
	// Delegate scans the loopback port range and hands the capture to a
	// resident. When no resident answers, delegated is false and err nil.
	Delegate(ctx context.Context, printURL bool) (delegated bool, url string, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return newTCPClient() }
