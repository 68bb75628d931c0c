package tcp

import (
	"context"
	"net"

	"github.com/Syracusa/ce-ef/pkg/transport"
)

// Transport implements a plain TCP stream transport.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (net.Listener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	go func() { <-ctx.Done(); _ = l.Close() }()
	return l, nil
}

// Dial connects to address. The dial is bounded by ctx; the caller applies
// its own connect timeout.
func (t *Transport) Dial(ctx context.Context, address string) (net.Conn, error) {
	d := &net.Dialer{}
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return c, nil
}
