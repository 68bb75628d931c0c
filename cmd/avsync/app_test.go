package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syracusa/ce-ef/pkg/config"
)

func TestAppAgainstEmbeddedBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Kind = "mem"
	cfg.Backend.Address = "avsync-app-test"
	cfg.Session.HeartbeatIntervalMS = 20
	cfg.Session.TelemetryIntervalMS = 20
	cfg.Fleet.Nodes = []config.NodeConfig{
		{Name: "uav-0", Lon: 127.00, Lat: 37.0, Alt: 100},
		{Name: "uav-1", Lon: 127.01, Lat: 37.0, Alt: 100},
		{Name: "uav-2", Lon: 127.02, Lat: 37.0, Alt: 100},
	}

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, a.model.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, true) }()

	require.Eventually(t, a.sess.Connected, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.sess.StartSimulation(3))

	require.Eventually(t, func() bool {
		snap, ok := a.model.Snapshot(0)
		return ok && len(snap.Table) == 3 && snap.Table[1].Known() && snap.Table[2].Known()
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(a.tracker.All()) == 3 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
