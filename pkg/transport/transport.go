package transport

import (
	"context"
	"net"
)

// Kind identifies the link type used to reach the backend.
type Kind int

const (
	KindUnknown Kind = iota
	KindTCP
	KindWinPipe
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindWinPipe:
		return "winpipe"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// Dialer opens one byte stream to an address. The stream client dials
// through this interface so the link kind is a config choice.
type Dialer interface {
	Kind() Kind
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// Transport is a Dialer that can also accept streams. Listening is used by
// the mock backend and by tests.
type Transport interface {
	Dialer
	// Listen starts accepting streams on address (transport-specific format).
	Listen(ctx context.Context, address string) (net.Listener, error)
}
