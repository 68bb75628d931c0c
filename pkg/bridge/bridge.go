// Package bridge serves the routing and fleet state to the rendering layer
// over HTTP and pushes route updates over a WebSocket. It also carries the
// simulation and traffic commands issued from the GUI.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/fleet"
	"github.com/Syracusa/ce-ef/pkg/geo"
	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/routing"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/trx"
)

// Backend is the part of the backend session the bridge drives.
type Backend interface {
	Connected() bool
	LastStatus() time.Time
	StartSimulation(nodeNum int) error
	StopSimulation() error
	NewDummyTrafficConf(confID int) error
	DeleteDummyTrafficConf(confID int) error
	UpdateDummyTrafficConf(spec protocol.TrafficSpec) error
	StartDummyTraffic(spec protocol.TrafficSpec) error
	StopDummyTraffic(confID int) error
}

// Throughput lists current TRx samples.
type Throughput interface {
	All() []trx.Sample
}

type Server struct {
	fleet   *fleet.Registry
	model   *routing.Model
	backend Backend
	trx     Throughput
	hub     *hub
	router  *mux.Router

	trafficSeq atomic.Int64
	trafficMu  sync.Mutex
	traffic    map[int]protocol.TrafficSpec
}

func New(reg *fleet.Registry, model *routing.Model, backend Backend, tp Throughput) *Server {
	s := &Server{
		fleet:   reg,
		model:   model,
		backend: backend,
		trx:     tp,
		hub:     newHub(),
		traffic: make(map[int]protocol.TrafficSpec),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/nodes", s.listNodes).Methods(http.MethodGet)
	api.HandleFunc("/nodes", s.addNode).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{id:[0-9]+}", s.getNode).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id:[0-9]+}/routes", s.nodeRoutes).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id:[0-9]+}/position", s.moveNode).Methods(http.MethodPut)
	api.HandleFunc("/select/{id:[0-9]+}", s.selectNode).Methods(http.MethodPost)
	api.HandleFunc("/trx", s.listTRx).Methods(http.MethodGet)
	api.HandleFunc("/sim/start", s.startSim).Methods(http.MethodPost)
	api.HandleFunc("/sim/stop", s.stopSim).Methods(http.MethodPost)
	api.HandleFunc("/traffic", s.newTraffic).Methods(http.MethodPost)
	api.HandleFunc("/traffic/{id:[0-9]+}", s.updateTraffic).Methods(http.MethodPut)
	api.HandleFunc("/traffic/{id:[0-9]+}", s.deleteTraffic).Methods(http.MethodDelete)
	api.HandleFunc("/traffic/{id:[0-9]+}/start", s.startTraffic).Methods(http.MethodPost)
	api.HandleFunc("/traffic/{id:[0-9]+}/stop", s.stopTraffic).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.hub.serve(s.model)).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// RouteUpdated pushes snap to every WebSocket client.
func (s *Server) RouteUpdated(snap routing.Snapshot) { s.hub.broadcast(snap) }

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.hub.close()
		_ = srv.Shutdown(sctx)
	}()
	zap.L().Info("bridge listening", zap.String("addr", l.Addr().String()))
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type nodeView struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Position *geo.Position `json:"position"`
	Selected bool          `json:"selected"`
	Movable  bool          `json:"movable"`
}

func (s *Server) view(n fleet.Node) nodeView {
	v := nodeView{Index: n.Index, Name: n.Name, Selected: s.fleet.IsSelected(n.Index)}
	if p, ok := n.Position(); ok {
		v.Position = &p
	}
	_, v.Movable = n.Source().(*fleet.MovablePosition)
	return v
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Connected  bool       `json:"connected"`
		LastStatus *time.Time `json:"lastStatus"`
		Nodes      int        `json:"nodes"`
	}{Connected: s.backend.Connected(), Nodes: s.fleet.Count()}
	if ls := s.backend.LastStatus(); !ls.IsZero() {
		resp.LastStatus = &ls
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.fleet.Nodes()
	out := make([]nodeView, len(nodes))
	for i, n := range nodes {
		out[i] = s.view(n)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) nodeOr404(w http.ResponseWriter, r *http.Request) (fleet.Node, bool) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	n, ok := s.fleet.Node(id)
	if !ok {
		writeError(w, http.StatusNotFound, fleet.ErrNoSuchNode)
	}
	return n, ok
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	if n, ok := s.nodeOr404(w, r); ok {
		writeJSON(w, http.StatusOK, s.view(n))
	}
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		geo.Position
	}
	if !readJSON(w, r, &req) {
		return
	}
	n := s.fleet.Register(req.Name, fleet.NewMovablePosition(req.Position))
	writeJSON(w, http.StatusCreated, s.view(n))
}

func (s *Server) moveNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.nodeOr404(w, r)
	if !ok {
		return
	}
	mp, movable := n.Source().(*fleet.MovablePosition)
	if !movable {
		writeError(w, http.StatusConflict, errors.New("node position is fixed"))
		return
	}
	var p geo.Position
	if !readJSON(w, r, &p) {
		return
	}
	mp.Set(p)
	writeJSON(w, http.StatusOK, s.view(n))
}

func (s *Server) selectNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.nodeOr404(w, r)
	if !ok {
		return
	}
	if err := s.fleet.Select(n.Index); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(n))
}

func (s *Server) nodeRoutes(w http.ResponseWriter, r *http.Request) {
	n, ok := s.nodeOr404(w, r)
	if !ok {
		return
	}
	snap, ok := s.model.Snapshot(n.Index)
	if !ok {
		// registered but not yet known to the model
		snap = routing.Snapshot{Node: n.Index, Table: routing.Table{}, Edges: []int{}}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listTRx(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.trx.All())
}

func (s *Server) startSim(w http.ResponseWriter, r *http.Request) {
	var req protocol.Start
	if !readJSON(w, r, &req) {
		return
	}
	if req.NodeNum <= 0 {
		req.NodeNum = s.fleet.Count()
	}
	s.command(w, s.backend.StartSimulation(req.NodeNum), nil)
}

func (s *Server) stopSim(w http.ResponseWriter, _ *http.Request) {
	s.command(w, s.backend.StopSimulation(), nil)
}

// newTraffic allocates the next configuration id, starting from 1. The id
// is only kept once the backend accepted the command.
func (s *Server) newTraffic(w http.ResponseWriter, _ *http.Request) {
	id := int(s.trafficSeq.Add(1))
	spec := protocol.TrafficSpec{ConfID: id}
	if err := s.backend.NewDummyTrafficConf(id); err != nil {
		s.command(w, err, nil)
		return
	}
	s.trafficMu.Lock()
	s.traffic[id] = spec
	s.trafficMu.Unlock()
	writeJSON(w, http.StatusCreated, spec)
}

func (s *Server) trafficOr404(w http.ResponseWriter, r *http.Request) (protocol.TrafficSpec, bool) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	s.trafficMu.Lock()
	spec, ok := s.traffic[id]
	s.trafficMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no such traffic configuration"))
	}
	return spec, ok
}

func (s *Server) updateTraffic(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.trafficOr404(w, r)
	if !ok {
		return
	}
	id := spec.ConfID
	if !readJSON(w, r, &spec) {
		return
	}
	spec.ConfID = id
	s.trafficMu.Lock()
	s.traffic[id] = spec
	s.trafficMu.Unlock()
	s.command(w, s.backend.UpdateDummyTrafficConf(spec), spec)
}

func (s *Server) deleteTraffic(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.trafficOr404(w, r)
	if !ok {
		return
	}
	s.trafficMu.Lock()
	delete(s.traffic, spec.ConfID)
	s.trafficMu.Unlock()
	s.command(w, s.backend.DeleteDummyTrafficConf(spec.ConfID), nil)
}

func (s *Server) startTraffic(w http.ResponseWriter, r *http.Request) {
	if spec, ok := s.trafficOr404(w, r); ok {
		s.command(w, s.backend.StartDummyTraffic(spec), spec)
	}
}

func (s *Server) stopTraffic(w http.ResponseWriter, r *http.Request) {
	if spec, ok := s.trafficOr404(w, r); ok {
		s.command(w, s.backend.StopDummyTraffic(spec.ConfID), nil)
	}
}

// command maps a session send result to an HTTP response.
func (s *Server) command(w http.ResponseWriter, err error, body any) {
	switch {
	case err == nil && body == nil:
		w.WriteHeader(http.StatusAccepted)
	case err == nil:
		writeJSON(w, http.StatusAccepted, body)
	case errors.Is(err, stream.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
