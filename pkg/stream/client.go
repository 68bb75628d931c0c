// Package stream keeps one outbound byte stream to the backend alive.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/transport"
)

// State of the supervised connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotConnected is returned by Send while no connection is up. The bytes
// are dropped, not queued.
var ErrNotConnected = errors.New("stream: not connected")

// Observer receives connection lifecycle events. All calls are made from the
// goroutine running Client.Run, in order: OnConnect, zero or more OnData,
// OnClose.
type Observer interface {
	OnConnect()
	// OnData receives one read chunk. The slice is reused after the call
	// returns.
	OnData(chunk []byte)
	OnClose(err error)
}

// Options tune the supervision loop. Zero values take the defaults below.
type Options struct {
	Address string
	// DialTimeout bounds one connection attempt (default 3s).
	DialTimeout time.Duration
	// IdleTimeout closes the connection when nothing arrives for this long
	// (default 3s).
	IdleTimeout time.Duration
	// RetryInterval is the fixed delay after a failed dial (default 2s).
	RetryInterval time.Duration
	// WriteTimeout bounds a single Send (default IdleTimeout).
	WriteTimeout   time.Duration
	ReadBufferSize int
}

const (
	DefaultDialTimeout    = 3 * time.Second
	DefaultIdleTimeout    = 3 * time.Second
	DefaultRetryInterval  = 2 * time.Second
	DefaultReadBufferSize = 4096
)

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = o.IdleTimeout
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	return o
}

// Client owns at most one connection at a time and redials forever.
type Client struct {
	dialer transport.Dialer
	obs    Observer
	opts   Options

	state atomic.Int32

	mu     sync.Mutex // guards conn, connID
	conn   net.Conn
	connID xid.ID

	writeMu sync.Mutex
}

func New(d transport.Dialer, obs Observer, opts Options) *Client {
	return &Client{dialer: d, obs: obs, opts: opts.withDefaults()}
}

func (c *Client) State() State    { return State(c.state.Load()) }
func (c *Client) Connected() bool { return c.State() == Connected }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Run supervises the connection until ctx is cancelled and returns ctx.Err().
// A dial failure waits RetryInterval; a lost connection is redialed at once.
func (c *Client) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("addr", c.opts.Address), zap.Stringer("kind", c.dialer.Kind()))
	for {
		if err := ctx.Err(); err != nil {
			c.setState(Disconnected)
			return err
		}
		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.DialFailures.Inc()
			log.Debug("dial failed", zap.Error(err), zap.Duration("retry_in", c.opts.RetryInterval))
			if !sleep(ctx, c.opts.RetryInterval) {
				return ctx.Err()
			}
			continue
		}
		c.serve(ctx, log, conn)
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	return c.dialer.Dial(dctx, c.opts.Address)
}

// serve pumps reads from conn to the observer until the connection fails,
// idles out, or ctx ends.
func (c *Client) serve(ctx context.Context, log *zap.Logger, conn net.Conn) {
	id := xid.New()
	log = log.With(zap.Stringer("conn", id))

	c.mu.Lock()
	c.conn, c.connID = conn, id
	c.mu.Unlock()
	c.setState(Connected)
	observability.Connected.Set(1)
	observability.Reconnects.Inc()
	log.Info("connected to backend")
	c.obs.OnConnect()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, c.opts.ReadBufferSize)
	var err error
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
		n, rerr := conn.Read(buf)
		if n > 0 {
			observability.BytesIn.Add(float64(n))
			c.obs.OnData(buf[:n])
		}
		if rerr != nil {
			err = rerr
			break
		}
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()
	c.setState(Disconnected)
	observability.Connected.Set(0)

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		log.Warn("backend idle, closing", zap.Duration("idle", c.opts.IdleTimeout))
	} else {
		log.Info("backend connection closed", zap.Error(err))
	}
	c.obs.OnClose(err)
}

// Send writes b as one unit. It is safe for concurrent use.
func (c *Client) Send(b []byte) error {
	c.mu.Lock()
	conn, id := c.conn, c.connID
	c.mu.Unlock()
	if conn == nil {
		observability.SendsDropped.Inc()
		zap.L().Debug("send dropped, not connected", zap.Int("len", len(b)))
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	n, err := conn.Write(b)
	observability.BytesOut.Add(float64(n))
	if err != nil {
		// A failed write leaves a partial frame on the wire; drop the link so
		// the peer resynchronizes on a fresh connection.
		_ = conn.Close()
		return fmt.Errorf("send on %s: %w", id, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
