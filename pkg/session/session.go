// Package session coordinates one backend connection: periodic heartbeat
// and link telemetry, inbound dispatch into the routing model, and the
// outbound simulation and traffic commands.
package session

//go:generate mockgen -destination "mock_session_test.go" -package $GOPACKAGE -write_package_comment=false github.com/Syracusa/ce-ef/pkg/session NodeLocator,TRxHandler,RouteObserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/channel"
	"github.com/Syracusa/ce-ef/pkg/geo"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/routing"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/transport"
)

// NodeLocator is the node registry as seen by the session.
type NodeLocator interface {
	Count() int
	Position(i int) (geo.Position, bool)
}

// TRxHandler consumes throughput samples.
type TRxHandler interface {
	HandleTRx(s protocol.TRx)
}

// RouteObserver is told about every route update the model accepted.
type RouteObserver interface {
	RouteUpdated(s routing.Snapshot)
}

// DefaultUnknownDistance is reported for pairs where a position is missing.
const DefaultUnknownDistance = 10_000_000.0

type Options struct {
	Stream            stream.Options
	HeartbeatInterval time.Duration // default 1s
	TelemetryInterval time.Duration // default 1s
	UnknownDistance   float64       // meters, default DefaultUnknownDistance
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = time.Second
	}
	if o.TelemetryInterval <= 0 {
		o.TelemetryInterval = time.Second
	}
	if o.UnknownDistance <= 0 {
		o.UnknownDistance = DefaultUnknownDistance
	}
	return o
}

var ErrAlreadyStarted = errors.New("session: already started")

type Session struct {
	ch    *channel.Channel
	nodes NodeLocator
	model *routing.Model
	opts  Options

	mu     sync.RWMutex // guards handler lists
	trx    []TRxHandler
	routes []RouteObserver

	connected  atomic.Bool
	lastStatus atomic.Int64 // unix nanos

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(d transport.Dialer, c codec.Codec, nodes NodeLocator, model *routing.Model, opts Options) *Session {
	s := &Session{nodes: nodes, model: model, opts: opts.withDefaults()}
	s.ch = channel.New(d, c, (*dispatcher)(s), s.opts.Stream)
	return s
}

// OnTRx registers h for inbound TRx samples. Register before Start.
func (s *Session) OnTRx(h TRxHandler) {
	s.mu.Lock()
	s.trx = append(s.trx, h)
	s.mu.Unlock()
}

// OnRoute registers o for accepted route updates. Register before Start.
func (s *Session) OnRoute(o RouteObserver) {
	s.mu.Lock()
	s.routes = append(s.routes, o)
	s.mu.Unlock()
}

// Start launches the connection supervisor and the heartbeat and telemetry
// tickers. They run until ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	s.startOnce.Do(func() {
		err = nil
		ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Add(3)
		go func() {
			defer s.wg.Done()
			_ = s.ch.Run(ctx)
		}()
		go s.every(ctx, s.opts.HeartbeatInterval, s.sendHeartbeat)
		go s.every(ctx, s.opts.TelemetryInterval, s.sendTelemetry)
		zap.L().Info("backend session started",
			zap.String("addr", s.opts.Stream.Address),
			zap.Duration("heartbeat", s.opts.HeartbeatInterval),
			zap.Duration("telemetry", s.opts.TelemetryInterval))
	})
	return err
}

// Close stops all session goroutines and waits for them. The routing model
// is left as it is.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Session) Connected() bool { return s.connected.Load() }

// LastStatus is when the backend last acknowledged a heartbeat, or the zero
// time if it never did.
func (s *Session) LastStatus() time.Time {
	ns := s.lastStatus.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Session) every(ctx context.Context, d time.Duration, fn func()) {
	defer s.wg.Done()
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func (s *Session) sendHeartbeat() {
	_ = s.send(protocol.TypeStatus, nil)
}

func (s *Session) sendTelemetry() {
	_ = s.send(protocol.TypeLinkInfo, protocol.LinkInfo{Links: LinkMatrix(s.nodes, s.opts.UnknownDistance)})
}

// send encodes and writes one message. Sends while disconnected are dropped.
func (s *Session) send(typ string, payload any) error {
	m, err := protocol.NewMessage(typ, payload)
	if err != nil {
		zap.L().Error("build message", zap.String("type", typ), zap.Error(err))
		return err
	}
	if err := s.ch.SendMessage(m); err != nil {
		if errors.Is(err, stream.ErrNotConnected) {
			zap.L().Debug("message dropped while disconnected", zap.String("type", typ))
		} else {
			zap.L().Warn("send failed", zap.String("type", typ), zap.Error(err))
		}
		return err
	}
	return nil
}
