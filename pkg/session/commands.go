package session

import "github.com/Syracusa/ce-ef/pkg/protocol"

// The commands below are fire-and-forget. Each returns the send error,
// stream.ErrNotConnected included, for callers that want to report it.

// StartSimulation asks the backend to run a simulation of nodeNum nodes.
func (s *Session) StartSimulation(nodeNum int) error {
	return s.send(protocol.TypeStart, protocol.Start{NodeNum: nodeNum})
}

func (s *Session) StopSimulation() error {
	return s.send(protocol.TypeStop, nil)
}

func (s *Session) NewDummyTrafficConf(confID int) error {
	return s.send(protocol.TypeNewDummyTrafficConf, protocol.TrafficConf{ConfID: confID})
}

func (s *Session) DeleteDummyTrafficConf(confID int) error {
	return s.send(protocol.TypeDeleteDummyTrafficConf, protocol.TrafficConf{ConfID: confID})
}

func (s *Session) UpdateDummyTrafficConf(spec protocol.TrafficSpec) error {
	return s.send(protocol.TypeUpdateDummyTrafficConf, spec)
}

func (s *Session) StartDummyTraffic(spec protocol.TrafficSpec) error {
	return s.send(protocol.TypeStartDummyTraffic, spec)
}

func (s *Session) StopDummyTraffic(confID int) error {
	return s.send(protocol.TypeStopDummyTraffic, protocol.TrafficConf{ConfID: confID})
}
