// Package trx keeps the most recent link throughput sample of every node.
package trx

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/memkv"
	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
)

const (
	keyPrefix = "trx:"
	// DefaultTTL is how long a sample counts as current.
	DefaultTTL = 10 * time.Second
)

// Sample is one TRx report and when it arrived.
type Sample struct {
	Node int       `json:"node"`
	Tx   int       `json:"tx"`
	Rx   int       `json:"rx"`
	At   time.Time `json:"at"`
}

// Tracker stores samples with a TTL so nodes that stop reporting drop out.
// Samples are kept CBOR-encoded in a memkv.Store.
type Tracker struct {
	store *memkv.Store
	codec codec.Codec
	ttl   time.Duration
	now   func() time.Time
}

type Options struct {
	TTL      time.Duration // default DefaultTTL
	MaxBytes uint64        // encoded size of all samples, 0 = unlimited
}

// New starts a tracker and points the avsync_trx_store_* metrics at it.
func New(opts Options) *Tracker {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	t := &Tracker{codec: codec.CBOR(), ttl: opts.TTL, now: time.Now}
	t.store = memkv.New(memkv.Options{
		MaxBytes: opts.MaxBytes,
		OnExpire: func(key string, _ []byte) {
			zap.L().Debug("throughput sample expired", zap.String("key", key))
		},
	})
	observability.ObserveTRxStore(t.store.Metrics)
	return t
}

func (t *Tracker) Close() { t.store.Close() }

// HandleTRx records s as node s.Node's latest sample.
func (t *Tracker) HandleTRx(s protocol.TRx) {
	b, err := t.codec.Marshal(Sample{Node: s.Node, Tx: s.Tx, Rx: s.Rx, At: t.now()})
	if err != nil {
		zap.L().Warn("encode throughput sample", zap.Int("node", s.Node), zap.Error(err))
		return
	}
	if !t.store.Set(key(s.Node), b, t.ttl) {
		zap.L().Warn("throughput sample dropped, store full", zap.Int("node", s.Node))
	}
}

// Stats reports the counters of the underlying store.
func (t *Tracker) Stats() memkv.Stats { return t.store.Metrics() }

// Latest returns node's sample if one arrived within the TTL.
func (t *Tracker) Latest(node int) (Sample, bool) {
	b, ok := t.store.Get(key(node))
	if !ok {
		return Sample{}, false
	}
	var s Sample
	if err := t.codec.Unmarshal(b, &s); err != nil {
		return Sample{}, false
	}
	return s, true
}

// All returns every current sample ordered by node.
func (t *Tracker) All() []Sample {
	out := []Sample{}
	t.store.Range(func(k string, b []byte) bool {
		if !strings.HasPrefix(k, keyPrefix) {
			return true
		}
		var s Sample
		if err := t.codec.Unmarshal(b, &s); err == nil {
			out = append(out, s)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

func key(node int) string { return keyPrefix + strconv.Itoa(node) }
