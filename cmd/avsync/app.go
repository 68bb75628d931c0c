package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/bridge"
	"github.com/Syracusa/ce-ef/pkg/config"
	"github.com/Syracusa/ce-ef/pkg/fleet"
	"github.com/Syracusa/ce-ef/pkg/geo"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/recorder"
	"github.com/Syracusa/ce-ef/pkg/routing"
	"github.com/Syracusa/ce-ef/pkg/session"
	"github.com/Syracusa/ce-ef/pkg/simulator"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/transport"
	"github.com/Syracusa/ce-ef/pkg/transports"
	"github.com/Syracusa/ce-ef/pkg/trx"
)

// app is the wired client: registry, routing model and backend session, plus
// whichever of the recorder and bridge the config enables.
type app struct {
	cfg     *config.Config
	tr      transport.Transport
	codec   codec.Codec
	fleet   *fleet.Registry
	model   *routing.Model
	sess    *session.Session
	tracker *trx.Tracker
	rec     *recorder.Recorder
	bridge  *bridge.Server
}

func newApp(cfg *config.Config) (*app, error) {
	tr, err := transports.NewByKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}
	c, err := codec.NewRegistry().ByName(cfg.Backend.Codec)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, tr: tr, codec: c, fleet: fleet.NewRegistry(), model: routing.NewModel()}
	a.fleet.OnRegister(fleet.ObserverFunc(func(_ fleet.Node, count int) {
		a.model.EnsureNodes(count)
	}))
	for _, n := range cfg.Fleet.Nodes {
		a.fleet.Register(n.Name, fleet.NewMovablePosition(geo.Position{Lon: n.Lon, Lat: n.Lat, Alt: n.Alt}))
	}

	a.sess = session.New(tr, c, a.fleet, a.model, sessionOptions(cfg))
	a.tracker = trx.New(trx.Options{TTL: cfg.TRx.SampleTTL(), MaxBytes: cfg.TRx.MaxBytes})
	a.sess.OnTRx(a.tracker)

	if cfg.Recorder.Enable {
		a.rec, err = recorder.Open(cfg.Recorder.Path, recorder.Options{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval(),
		})
		if err != nil {
			a.tracker.Close()
			return nil, fmt.Errorf("open recorder: %w", err)
		}
		a.sess.OnTRx(a.rec)
		a.sess.OnRoute(a.rec)
	}
	if cfg.Bridge.Enable {
		a.bridge = bridge.New(a.fleet, a.model, a.sess, a.tracker)
		a.sess.OnRoute(a.bridge)
	}
	return a, nil
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Stream: stream.Options{
			Address:        cfg.Backend.Address,
			DialTimeout:    cfg.Backend.DialTimeout(),
			IdleTimeout:    cfg.Backend.IdleTimeout(),
			RetryInterval:  cfg.Backend.RetryInterval(),
			ReadBufferSize: cfg.Backend.ReadBufferBytes,
		},
		HeartbeatInterval: cfg.Session.HeartbeatInterval(),
		TelemetryInterval: cfg.Session.TelemetryInterval(),
		UnknownDistance:   cfg.Session.UnknownDistanceM,
	}
}

// run blocks until ctx is cancelled. With embedded set, a mock backend is
// served on the configured transport and address before the session dials.
func (a *app) run(ctx context.Context, embedded bool) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	defer a.close()

	if embedded {
		l, err := a.tr.Listen(ctx, a.cfg.Backend.Address)
		if err != nil {
			return fmt.Errorf("embedded backend: %w", err)
		}
		sim := simulator.New(simulator.Options{Codec: a.codec})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sim.Serve(ctx, l); err != nil && !errors.Is(err, context.Canceled) {
				zap.L().Error("embedded backend stopped", zap.Error(err))
			}
		}()
	}

	if err := a.sess.Start(ctx); err != nil {
		return err
	}

	if a.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.bridge.ListenAndServe(ctx, a.cfg.Bridge.Listen); err != nil {
				zap.L().Error("bridge stopped", zap.Error(err))
			}
		}()
	}

	zap.L().Info("avsync is running; press Ctrl+C to exit",
		zap.Int("nodes", a.fleet.Count()),
		zap.Stringer("transport", a.tr.Kind()),
		zap.String("codec", a.cfg.Backend.Codec))
	<-ctx.Done()
	return nil
}

func (a *app) close() {
	a.sess.Close()
	a.tracker.Close()
	if a.rec != nil {
		if err := a.rec.Close(); err != nil {
			zap.L().Warn("close recorder", zap.Error(err))
		}
	}
}
