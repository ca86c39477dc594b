// Package singleinstance lets a run-once invocation hand its capture to an
// already running resident over loopback TCP.
package singleinstance

import (
	"context"
)

// Server is the resident side. It binds the first port of the configured
// range and hands out one Conn per capture request.
type Server interface {
	Start(ctx context.Context) error
	// Port returns the bound port, or 0 before Start.
	Port() int
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is a single delegated capture. Exactly one of RespondSuccess or
// RespondError should be called before Close.
type Conn interface {
	Request() Request
	// RespondSuccess sends the PNG in stdout mode; clipboard mode sends nil.
	RespondSuccess(png []byte) error
	RespondError(msg string) error
	Close() error
}

// Request describes where the requesting process wants the image.
type Request struct {
	OutputToStdout bool
}

// Client delegates a capture to a resident if one answers. It reports
// delegated=false with a nil error when none is running.
type Client interface {
	TryRunOnce(ctx context.Context, outputToStdout bool) (delegated bool, png []byte, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return &tcpClient{} }
