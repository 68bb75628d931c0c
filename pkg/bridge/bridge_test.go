package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syracusa/ce-ef/pkg/fleet"
	"github.com/Syracusa/ce-ef/pkg/geo"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/routing"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/trx"
)

type call struct {
	name string
	arg  any
}

type fakeBackend struct {
	mu        sync.Mutex
	calls     []call
	connected bool
}

func (f *fakeBackend) record(name string, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name, arg})
	if !f.connected {
		return stream.ErrNotConnected
	}
	return nil
}

func (f *fakeBackend) Connected() bool       { return f.connected }
func (f *fakeBackend) LastStatus() time.Time { return time.Time{} }
func (f *fakeBackend) StartSimulation(n int) error {
	return f.record("Start", n)
}
func (f *fakeBackend) StopSimulation() error { return f.record("Stop", nil) }
func (f *fakeBackend) NewDummyTrafficConf(id int) error {
	return f.record("New", id)
}
func (f *fakeBackend) DeleteDummyTrafficConf(id int) error {
	return f.record("Delete", id)
}
func (f *fakeBackend) UpdateDummyTrafficConf(spec protocol.TrafficSpec) error {
	return f.record("Update", spec)
}
func (f *fakeBackend) StartDummyTraffic(spec protocol.TrafficSpec) error {
	return f.record("StartTraffic", spec)
}
func (f *fakeBackend) StopDummyTraffic(id int) error { return f.record("StopTraffic", id) }

type staticTRx []trx.Sample

func (s staticTRx) All() []trx.Sample { return s }

type fixture struct {
	srv     *Server
	reg     *fleet.Registry
	model   *routing.Model
	backend *fakeBackend
}

func setup(t *testing.T) *fixture {
	t.Helper()
	reg := fleet.NewRegistry()
	model := routing.NewModel()
	reg.OnRegister(fleet.ObserverFunc(func(_ fleet.Node, count int) { model.EnsureNodes(count) }))
	reg.Register("fixed", fleet.StaticPosition{Lon: 127, Lat: 36})
	reg.Register("mover", fleet.NewMovablePosition(geo.Position{Lon: 128, Lat: 37}))
	reg.Register("third", nil)

	be := &fakeBackend{connected: true}
	srv := New(reg, model, be, staticTRx{{Node: 1, Tx: 3, Rx: 4}})
	return &fixture{srv: srv, reg: reg, model: model, backend: be}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusAndNodes(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":true,"lastStatus":null,"nodes":3}`, rec.Body.String())

	nodes := decode[[]nodeView](t, f.do(t, http.MethodGet, "/api/nodes", ""))
	require.Len(t, nodes, 3)
	assert.False(t, nodes[0].Movable)
	assert.True(t, nodes[1].Movable)
	assert.Nil(t, nodes[2].Position)

	rec = f.do(t, http.MethodGet, "/api/nodes/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMoveAndSelectNode(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/api/nodes", `{"name":"new","lon":1,"lat":2,"alt":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[nodeView](t, rec)
	assert.Equal(t, 3, v.Index)
	assert.Equal(t, &geo.Position{Lon: 1, Lat: 2, Alt: 3}, v.Position)
	assert.Equal(t, 4, f.model.Len())

	rec = f.do(t, http.MethodPut, "/api/nodes/1/position", `{"lon":5,"lat":6,"alt":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	p, ok := f.reg.Position(1)
	require.True(t, ok)
	assert.Equal(t, geo.Position{Lon: 5, Lat: 6, Alt: 7}, p)

	rec = f.do(t, http.MethodPut, "/api/nodes/0/position", `{"lon":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/select/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[nodeView](t, rec).Selected)
	assert.True(t, f.reg.IsSelected(2))
}

func TestNodeRoutes(t *testing.T) {
	f := setup(t)
	_, err := f.model.ApplyRoute(0, 2, routing.Entry{HopCount: 2, Path: []int{1}})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/nodes/0/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[routing.Snapshot](t, rec)
	assert.Equal(t, []int{0, 2}, snap.Edges)
	assert.Equal(t, routing.Entry{HopCount: 2, Path: []int{1}}, snap.Table[2])
}

func TestTRx(t *testing.T) {
	f := setup(t)
	samples := decode[[]trx.Sample](t, f.do(t, http.MethodGet, "/api/trx", ""))
	require.Len(t, samples, 1)
	assert.Equal(t, 3, samples[0].Tx)
}

func TestSimulationCommands(t *testing.T) {
	f := setup(t)

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/sim/start", `{"nodenum":5}`).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/sim/start", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/sim/stop", "").Code)
	assert.Equal(t, []call{{"Start", 5}, {"Start", 3}, {"Stop", nil}}, f.backend.calls)

	f.backend.connected = false
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/sim/stop", "").Code)
}

func TestTrafficLifecycle(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/api/traffic", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[protocol.TrafficSpec](t, rec).ConfID)
	rec = f.do(t, http.MethodPost, "/api/traffic", "")
	assert.Equal(t, 2, decode[protocol.TrafficSpec](t, rec).ConfID)

	rec = f.do(t, http.MethodPut, "/api/traffic/1",
		`{"confId":99,"sourceNodeId":0,"destinationNodeId":2,"packetSize":256,"intervalMs":50}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	want := protocol.TrafficSpec{ConfID: 1, SourceNodeID: 0, DestinationNodeID: 2, PacketSize: 256, IntervalMs: 50}
	assert.Equal(t, want, decode[protocol.TrafficSpec](t, rec))

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/traffic/1/start", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/traffic/1/stop", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodDelete, "/api/traffic/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/traffic/1/start", "").Code)

	assert.Equal(t, []call{
		{"New", 1}, {"New", 2},
		{"Update", want}, {"StartTraffic", want}, {"StopTraffic", 1}, {"Delete", 1},
	}, f.backend.calls)
}

func TestTrafficNotRegisteredWhenBackendDown(t *testing.T) {
	f := setup(t)
	f.backend.connected = false

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/traffic", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/traffic/1", `{"packetSize":1,"intervalMs":1}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/traffic/1/start", "").Code)

	f.backend.connected = true
	rec := f.do(t, http.MethodPost, "/api/traffic", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decode[protocol.TrafficSpec](t, rec).ConfID)
	assert.Equal(t, []call{{"New", 1}, {"New", 2}}, f.backend.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "avsync_routing_updates_total")
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	f := setup(t)
	_, err := f.model.ApplyRoute(0, 1, routing.Entry{HopCount: 1})
	require.NoError(t, err)

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readSnap := func() routing.Snapshot {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap routing.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}

	// initial state: one snapshot per node
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, readSnap().Node)
	}

	require.Eventually(t, func() bool { return f.srv.hub.count() == 1 }, time.Second, 5*time.Millisecond)
	snap, err := f.model.ApplyRoute(2, 0, routing.Entry{HopCount: 2, Path: []int{1}})
	require.NoError(t, err)
	f.srv.RouteUpdated(snap)

	got := readSnap()
	assert.Equal(t, 2, got.Node)
	assert.Equal(t, snap.Version, got.Version)
	assert.Equal(t, []int{0, 2}, got.Edges)
}

func TestStalledWebSocketClientDoesNotBlockBroadcast(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.hub.count() == 1 }, time.Second, 5*time.Millisecond)

	// ~100 KiB per push, far beyond what socket buffers absorb over the run
	big := routing.Snapshot{Node: 0, Table: make(routing.Table, 4000), Edges: []int{0}}
	var worst time.Duration
	for i := 0; i < 300; i++ {
		big.Version = uint64(i + 1)
		start := time.Now()
		f.srv.RouteUpdated(big)
		worst = max(worst, time.Since(start))
	}
	assert.Less(t, worst, 250*time.Millisecond)
	assert.Eventually(t, func() bool { return f.srv.hub.count() == 0 }, 5*time.Second, 10*time.Millisecond)
}
