//go:build windows

package winpipe

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/Syracusa/ce-ef/pkg/transport"
)

// Transport reaches a simulator on the same Windows host through a named
// pipe such as \\.\pipe\avsync.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (net.Listener, error) {
	l, err := winio.ListenPipe(pipeName, nil)
	if err != nil {
		return nil, err
	}
	go func() { <-ctx.Done(); _ = l.Close() }()
	return l, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, pipeName)
}
