package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Syracusa/ce-ef/pkg/memkv"
)

// storeCollector reads memkv counters at scrape time. The source is swapped
// rather than re-registered so a process can rebuild its tracker.
type storeCollector struct {
	src atomic.Pointer[func() memkv.Stats]

	keys, bytes, sets, hits, misses, expired *prometheus.Desc
}

func newStoreCollector(subsystem string) *storeCollector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &storeCollector{
		keys:    d("store_keys", "Live keys in the sample store."),
		bytes:   d("store_bytes", "Bytes of stored sample values."),
		sets:    d("store_sets_total", "Accepted writes to the sample store."),
		hits:    d("store_hits_total", "Reads that found a live sample."),
		misses:  d("store_misses_total", "Reads that found nothing."),
		expired: d("store_expired_total", "Samples removed by the expirer."),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.bytes
	ch <- c.sets
	ch <- c.hits
	ch <- c.misses
	ch <- c.expired
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	fn := c.src.Load()
	if fn == nil {
		return
	}
	st := (*fn)()
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(st.Bytes))
	ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(st.Sets))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(st.Expired))
}

var trxStore = newStoreCollector("trx")

// ObserveTRxStore makes stats the source of the avsync_trx_store_* metrics.
// A later call replaces the earlier source.
func ObserveTRxStore(stats func() memkv.Stats) { trxStore.src.Store(&stats) }

func init() {
	Registry.MustRegister(trxStore)
}
