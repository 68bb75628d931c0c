// Package transports builds transport implementations from config kinds.
package transports

import (
	"strings"

	"github.com/Syracusa/ce-ef/pkg/transport"
	"github.com/Syracusa/ce-ef/pkg/transport/mem"
	"github.com/Syracusa/ce-ef/pkg/transport/tcp"
)

// NewByKind constructs a Transport by string kind.
func NewByKind(kind string) (transport.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "tcp":
		return tcp.New(), nil
	case "mem", "inproc":
		return mem.Shared(), nil
	case "winpipe", "pipe":
		return newWinPipeTransport()
	default:
		return nil, ErrUnknownKind(kind)
	}
}

// ErrUnknownKind is returned for kinds with no transport.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
