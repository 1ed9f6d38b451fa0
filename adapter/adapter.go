package adapter

import (
	"io"

	"go.bug.st/serial/enumerator"
)

// Stick is an ANT USB stick exposed as a raw byte stream.
// Read returns zero bytes on timeout rather than blocking forever.
type Stick interface {
	io.ReadWriteCloser

	// PrintStatus prints transport information to stdout
	PrintStatus()
}

// NewClientFunc is a function type that creates a new stick client
type NewClientFunc func(portDetails *enumerator.PortDetails) (Stick, error)
