// Package simulator is a stand-in for the network simulation backend. It
// speaks the framed protocol, echoes heartbeats and, once a simulation is
// started, emits throughput samples and routes planned from the client's
// link telemetry.
package simulator

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
)

type Options struct {
	Codec        codec.Codec   // default JSON
	RadioRange   float64       // meters, default 3000
	TickInterval time.Duration // default 1s
	WriteTimeout time.Duration // default 2s
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.JSON()
	}
	if o.RadioRange <= 0 {
		o.RadioRange = 3000
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	return o
}

// Server accepts client connections and runs one independent simulation per
// connection.
type Server struct {
	opts Options
	wg   sync.WaitGroup
}

func New(opts Options) *Server { return &Server{opts: opts.withDefaults()} }

// Serve accepts connections from l until ctx is cancelled, then closes l and
// waits for every connection handler to return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	defer s.wg.Wait()
	zap.L().Info("mock backend listening", zap.String("addr", l.Addr().String()))
	for {
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Warn("accept failed", zap.String("addr", l.Addr().String()), zap.Error(err))
			return err
		}
		p := newPeer(c, s.opts)
		zap.L().Info("client connected", zap.Stringer("conn", p.id), zap.String("raddr", c.RemoteAddr().String()))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			p.run(ctx)
		}()
	}
}

// flow is one dummy-traffic configuration and whether it is running.
type flow struct {
	spec   protocol.TrafficSpec
	active bool
}

type peer struct {
	id   xid.ID
	conn net.Conn
	opts Options
	dec  *protocol.Decoder
	wmu  sync.Mutex

	mu      sync.Mutex
	nodes   int
	links   [][]float64
	sent    map[[2]int][]int
	traffic map[int]*flow
	rnd     *rand.Rand
}

func newPeer(c net.Conn, opts Options) *peer {
	return &peer{
		id:      xid.New(),
		conn:    c,
		opts:    opts,
		dec:     protocol.NewDecoder(opts.Codec),
		sent:    make(map[[2]int][]int),
		traffic: make(map[int]*flow),
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

func (p *peer) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = p.conn.Close() })
	defer stop()

	go p.tickLoop(ctx)

	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			for _, m := range p.dec.Feed(buf[:n]) {
				p.handle(m)
			}
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				zap.L().Info("client disconnected", zap.Stringer("conn", p.id), zap.Error(err))
			}
			_ = p.conn.Close()
			return
		}
	}
}

func (p *peer) handle(m protocol.Message) {
	log := zap.L().With(zap.Stringer("conn", p.id), zap.String("type", m.Type))
	switch m.Type {
	case protocol.TypeStatus:
		p.send(protocol.MustMessage(protocol.TypeStatus, nil))
	case protocol.TypeLinkInfo:
		var li protocol.LinkInfo
		if err := m.Decode(&li); err != nil {
			log.Warn("bad payload", zap.Error(err))
			return
		}
		p.mu.Lock()
		p.links = li.Links
		p.mu.Unlock()
	case protocol.TypeStart:
		var st protocol.Start
		if err := m.Decode(&st); err != nil {
			log.Warn("bad payload", zap.Error(err))
			return
		}
		p.mu.Lock()
		p.nodes = st.NodeNum
		clear(p.sent)
		p.mu.Unlock()
		log.Info("simulation started", zap.Int("nodes", st.NodeNum))
	case protocol.TypeStop:
		p.mu.Lock()
		p.nodes = 0
		p.mu.Unlock()
		log.Info("simulation stopped")
	case protocol.TypeNewDummyTrafficConf, protocol.TypeDeleteDummyTrafficConf, protocol.TypeStopDummyTraffic:
		var tc protocol.TrafficConf
		if err := m.Decode(&tc); err != nil {
			log.Warn("bad payload", zap.Error(err))
			return
		}
		p.mu.Lock()
		switch m.Type {
		case protocol.TypeNewDummyTrafficConf:
			p.traffic[tc.ConfID] = &flow{spec: protocol.TrafficSpec{ConfID: tc.ConfID}}
		case protocol.TypeDeleteDummyTrafficConf:
			delete(p.traffic, tc.ConfID)
		default:
			if f, ok := p.traffic[tc.ConfID]; ok {
				f.active = false
			}
		}
		p.mu.Unlock()
		log.Info("traffic command", zap.Int("conf", tc.ConfID))
	case protocol.TypeUpdateDummyTrafficConf, protocol.TypeStartDummyTraffic:
		var spec protocol.TrafficSpec
		if err := m.Decode(&spec); err != nil {
			log.Warn("bad payload", zap.Error(err))
			return
		}
		p.mu.Lock()
		f, ok := p.traffic[spec.ConfID]
		if !ok {
			f = &flow{}
			p.traffic[spec.ConfID] = f
		}
		f.spec = spec
		if m.Type == protocol.TypeStartDummyTraffic {
			f.active = true
		}
		p.mu.Unlock()
		log.Info("traffic command", zap.Any("spec", spec))
	default:
		log.Warn("unknown message type")
	}
}

func (p *peer) tickLoop(ctx context.Context) {
	t := time.NewTicker(p.opts.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, m := range p.tick() {
				if !p.send(m) {
					return
				}
			}
		}
	}
}

// tick returns the TRx samples for every simulated node and the routes that
// changed since they were last announced.
func (p *peer) tick() []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nodes <= 0 {
		return nil
	}
	tx := make([]int, p.nodes)
	rx := make([]int, p.nodes)
	for _, f := range p.traffic {
		if !f.active || f.spec.IntervalMs <= 0 {
			continue
		}
		rate := f.spec.PacketSize * 1000 / f.spec.IntervalMs
		if s := f.spec.SourceNodeID; s >= 0 && s < p.nodes {
			tx[s] += rate
		}
		if d := f.spec.DestinationNodeID; d >= 0 && d < p.nodes {
			rx[d] += rate
		}
	}
	var out []protocol.Message
	for i := 0; i < p.nodes; i++ {
		out = append(out, protocol.MustMessage(protocol.TypeTRx, protocol.TRx{
			Node: i,
			Tx:   tx[i] + p.rnd.IntN(64),
			Rx:   rx[i] + p.rnd.IntN(64),
		}))
	}
	for _, r := range PlanRoutes(truncate(p.links, p.nodes), p.opts.RadioRange) {
		key := [2]int{r.Node, r.Target}
		if prev, ok := p.sent[key]; ok && slices.Equal(prev, r.Path) {
			continue
		}
		p.sent[key] = r.Path
		out = append(out, protocol.MustMessage(protocol.TypeRoute, r))
	}
	return out
}

// truncate keeps the part of the matrix that covers the first n nodes.
func truncate(links [][]float64, n int) [][]float64 {
	if len(links) > n {
		links = links[:n]
	}
	out := make([][]float64, len(links))
	for i, row := range links {
		keep := n - i - 1
		if keep < 0 {
			keep = 0
		}
		if len(row) > keep {
			row = row[:keep]
		}
		out[i] = row
	}
	return out
}

func (p *peer) send(m protocol.Message) bool {
	frame, err := protocol.Encode(p.opts.Codec, m)
	if err != nil {
		zap.L().Error("encode", zap.String("type", m.Type), zap.Error(err))
		return true
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
	if _, err := p.conn.Write(frame); err != nil {
		_ = p.conn.Close()
		return false
	}
	return true
}
