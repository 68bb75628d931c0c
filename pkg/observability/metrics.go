package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "avsync"

// Registry holds every avsync collector. It is separate from the default
// registerer so tests can build several sessions in one process.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	FramesEncoded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "frame", Name: "encoded_total",
		Help: "Frames encoded for sending.",
	})
	FramesDecoded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "frame", Name: "decoded_total",
		Help: "Frames decoded into messages.",
	})
	FramesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "frame", Name: "dropped_total",
		Help: "Frames whose payload could not be parsed.",
	})

	Reconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "connects_total",
		Help: "Successful connections to the backend.",
	})
	DialFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "dial_failures_total",
		Help: "Failed connection attempts.",
	})
	Connected = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "stream", Name: "connected",
		Help: "1 while the backend connection is up.",
	})
	SendsDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "sends_dropped_total",
		Help: "Writes dropped because the connection was down.",
	})
	BytesIn = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "bytes_in_total",
		Help: "Bytes received from the backend.",
	})
	BytesOut = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "bytes_out_total",
		Help: "Bytes written to the backend.",
	})

	MessagesIn = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "messages_in_total",
		Help: "Inbound messages by type.",
	}, []string{"type"})
	MessagesOut = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "messages_out_total",
		Help: "Outbound messages by type, counted when handed to the stream.",
	}, []string{"type"})
	RoutesRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "routing", Name: "rejected_total",
		Help: "Route messages rejected by the routing model.",
	})
	RouteUpdates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "routing", Name: "updates_total",
		Help: "Route entries applied.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MetricsHandler exposes Registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
