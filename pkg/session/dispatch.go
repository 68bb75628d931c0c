package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/routing"
)

// dispatcher is the channel.Handler side of a Session.
type dispatcher Session

func (d *dispatcher) HandleConnect() {
	d.connected.Store(true)
}

func (d *dispatcher) HandleDisconnect(err error) {
	d.connected.Store(false)
}

func (d *dispatcher) HandleMessage(m protocol.Message) {
	s := (*Session)(d)
	switch m.Type {
	case protocol.TypeTRx:
		s.handleTRx(m)
	case protocol.TypeStatus:
		s.lastStatus.Store(time.Now().UnixNano())
	case protocol.TypeRoute:
		s.handleRoute(m)
	default:
		zap.L().Info("ignoring message of unknown type", zap.String("type", m.Type))
	}
}

func (s *Session) handleTRx(m protocol.Message) {
	var t protocol.TRx
	if err := m.Decode(&t); err != nil {
		zap.L().Warn("bad TRx message", zap.Error(err))
		return
	}
	s.mu.RLock()
	hs := s.trx
	s.mu.RUnlock()
	for _, h := range hs {
		h.HandleTRx(t)
	}
}

func (s *Session) handleRoute(m protocol.Message) {
	var r protocol.Route
	if err := m.Decode(&r); err != nil {
		observability.RoutesRejected.Inc()
		zap.L().Warn("bad Route message", zap.Error(err))
		return
	}
	snap, err := s.model.ApplyRoute(r.Node, r.Target, routing.Entry{HopCount: r.HopCount, Path: r.Path})
	if err != nil {
		observability.RoutesRejected.Inc()
		zap.L().Warn("route rejected",
			zap.Int("node", r.Node), zap.Int("target", r.Target),
			zap.Int("hopcount", r.HopCount), zap.Ints("path", r.Path), zap.Error(err))
		return
	}
	zap.L().Debug("route applied",
		zap.Int("node", r.Node), zap.Int("target", r.Target),
		zap.Ints("edges", snap.Edges), zap.Uint64("version", snap.Version))

	s.mu.RLock()
	obs := s.routes
	s.mu.RUnlock()
	for _, o := range obs {
		o.RouteUpdated(snap)
	}
}
