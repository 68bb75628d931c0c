package protocol

// Message types carried in the `type` discriminator of every payload.
const (
	// client -> backend
	TypeStart                  = "Start"
	TypeStop                   = "Stop"
	TypeStatus                 = "Status" // heartbeat; the backend echoes it
	TypeLinkInfo               = "LinkInfo"
	TypeNewDummyTrafficConf    = "NewDummyTrafficConf"
	TypeDeleteDummyTrafficConf = "DeleteDummyTrafficConf"
	TypeUpdateDummyTrafficConf = "UpdateDummyTrafficConf"
	TypeStartDummyTraffic      = "StartDummyTraffic"
	TypeStopDummyTraffic       = "StopDummyTraffic"

	// backend -> client
	TypeTRx   = "TRx"
	TypeRoute = "Route"
)

// Known reports whether typ is one of the message types above.
func Known(typ string) bool {
	switch typ {
	case TypeStart, TypeStop, TypeStatus, TypeLinkInfo,
		TypeNewDummyTrafficConf, TypeDeleteDummyTrafficConf, TypeUpdateDummyTrafficConf,
		TypeStartDummyTraffic, TypeStopDummyTraffic,
		TypeTRx, TypeRoute:
		return true
	}
	return false
}

// Start asks the backend to spin up a simulation with NodeNum nodes.
type Start struct {
	NodeNum int `json:"nodenum"`
}

// LinkInfo is the upper-triangular distance matrix between registered nodes.
// Row i holds distances (meters) to nodes i+1..N-1.
type LinkInfo struct {
	Links [][]float64 `json:"links"`
}

// TrafficConf addresses a dummy-traffic configuration by id.
type TrafficConf struct {
	ConfID int `json:"confId"`
}

// TrafficSpec fully describes a dummy-traffic configuration.
type TrafficSpec struct {
	ConfID            int `json:"confId"`
	SourceNodeID      int `json:"sourceNodeId"`
	DestinationNodeID int `json:"destinationNodeId"`
	PacketSize        int `json:"packetSize"`
	IntervalMs        int `json:"intervalMs"`
}

// TRx is a link throughput sample reported by the backend for one node.
type TRx struct {
	Node int `json:"node"`
	Tx   int `json:"tx"`
	Rx   int `json:"rx"`
}

// Route announces the route from Node to Target: HopCount hops through the
// relays listed in Path, in traversal order.
type Route struct {
	Node     int   `json:"node"`
	Target   int   `json:"target"`
	HopCount int   `json:"hopcount"`
	Path     []int `json:"path"`
}
