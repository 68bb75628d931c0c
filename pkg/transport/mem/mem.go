package mem

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/Syracusa/ce-ef/pkg/transport"
)

var (
	errNoListener = errors.New("mem: no such listener")
	errClosed     = errors.New("mem listener closed")
)

// Transport is an in-process transport using net.Pipe. Useful for tests and
// for running the mock backend inside the client process.
type Transport struct {
	mu        sync.Mutex
	listeners map[string]*listener
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

var (
	sharedOnce sync.Once
	shared     *Transport
)

// Shared returns the process-wide mem transport, so a listener started by
// one component can be dialed by another through config alone.
func Shared() *Transport {
	sharedOnce.Do(func() { shared = New() })
	return shared
}

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.listeners[name]; ok {
		return nil, errors.New("mem: listener already exists")
	}
	l := &listener{name: name, newCh: make(chan net.Conn), closeCh: make(chan struct{})}
	t.listeners[name] = l
	go func() {
		select {
		case <-ctx.Done():
		case <-l.closeCh:
		}
		_ = l.Close()
		t.mu.Lock()
		if t.listeners[name] == l {
			delete(t.listeners, name)
		}
		t.mu.Unlock()
	}()
	return l, nil
}

// Dial hands the server end of a fresh pipe to the listener. It fails like a
// refused TCP connect when nobody listens under name.
func (t *Transport) Dial(ctx context.Context, name string) (net.Conn, error) {
	t.mu.Lock()
	l := t.listeners[name]
	t.mu.Unlock()
	if l == nil {
		return nil, errNoListener
	}
	srv, cli := net.Pipe()
	select {
	case l.newCh <- srv:
		return cli, nil
	case <-l.closeCh:
		_ = srv.Close()
		_ = cli.Close()
		return nil, errNoListener
	case <-ctx.Done():
		_ = srv.Close()
		_ = cli.Close()
		return nil, ctx.Err()
	}
}

type listener struct {
	name    string
	newCh   chan net.Conn
	closeCh chan struct{}
	once    sync.Once
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept() (net.Conn, error) {
	select {
	case <-l.closeCh:
		return nil, errClosed
	case c := <-l.newCh:
		return c, nil
	}
}

func (l *listener) Close() error {
	l.once.Do(func() { close(l.closeCh) })
	return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }
