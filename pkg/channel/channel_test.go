package channel

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/transport/mem"
)

type recorder struct {
	connects chan struct{}
	msgs     chan protocol.Message
	closes   chan error
}

func newRecorder() *recorder {
	return &recorder{
		connects: make(chan struct{}, 8),
		msgs:     make(chan protocol.Message, 32),
		closes:   make(chan error, 8),
	}
}

func (r *recorder) HandleConnect()                   { r.connects <- struct{}{} }
func (r *recorder) HandleMessage(m protocol.Message) { r.msgs <- m }
func (r *recorder) HandleDisconnect(err error)       { r.closes <- err }

func recv[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

type fixture struct {
	ch  *Channel
	rec *recorder
	l   net.Listener
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	tr := mem.New()
	l, err := tr.Listen(ctx, "backend")
	require.NoError(t, err)

	rec := newRecorder()
	ch := New(tr, codec.JSON(), rec, stream.Options{Address: "backend", RetryInterval: 50 * time.Millisecond})
	done := make(chan struct{})
	go func() {
		_ = ch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &fixture{ch: ch, rec: rec, l: l}
}

func (f *fixture) accept(t *testing.T) net.Conn {
	t.Helper()
	conn, err := f.l.Accept()
	require.NoError(t, err)
	recv(t, f.rec.connects, "connect")
	return conn
}

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	b, err := protocol.Encode(codec.JSON(), protocol.MustMessage(typ, payload))
	require.NoError(t, err)
	return b
}

func TestInboundMessagesInOrder(t *testing.T) {
	f := setup(t)
	srv := f.accept(t)
	defer srv.Close()

	a := frame(t, protocol.TypeTRx, protocol.TRx{Node: 1, Tx: 2, Rx: 3})
	b := frame(t, protocol.TypeStatus, nil)
	all := append(append([]byte{}, a...), b...)

	// split inside the second frame's length prefix
	cut := len(a) + 1
	_, err := srv.Write(all[:cut])
	require.NoError(t, err)
	_, err = srv.Write(all[cut:])
	require.NoError(t, err)

	first := recv(t, f.rec.msgs, "TRx")
	assert.Equal(t, protocol.TypeTRx, first.Type)
	var trx protocol.TRx
	require.NoError(t, first.Decode(&trx))
	assert.Equal(t, protocol.TRx{Node: 1, Tx: 2, Rx: 3}, trx)
	assert.Equal(t, protocol.TypeStatus, recv(t, f.rec.msgs, "Status").Type)
}

func TestReconnectDiscardsPartialFrame(t *testing.T) {
	f := setup(t)
	srv := f.accept(t)

	stale := frame(t, protocol.TypeTRx, protocol.TRx{Node: 9})
	_, err := srv.Write(stale[:len(stale)-2])
	require.NoError(t, err)
	require.NoError(t, srv.Close())
	recv(t, f.rec.closes, "disconnect")

	srv2 := f.accept(t)
	defer srv2.Close()
	_, err = srv2.Write(frame(t, protocol.TypeStatus, nil))
	require.NoError(t, err)

	m := recv(t, f.rec.msgs, "Status")
	assert.Equal(t, protocol.TypeStatus, m.Type)
	select {
	case extra := <-f.rec.msgs:
		t.Fatalf("unexpected message %q", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendMessageWritesFrame(t *testing.T) {
	f := setup(t)
	srv := f.accept(t)
	defer srv.Close()

	got := make(chan []protocol.Message, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := srv.Read(buf)
		msgs, _ := protocol.Decode(codec.JSON(), buf[:n])
		got <- msgs
	}()

	require.NoError(t, f.ch.SendMessage(protocol.MustMessage(protocol.TypeStart, protocol.Start{NodeNum: 4})))
	msgs := recv(t, got, "frame at backend")
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.TypeStart, msgs[0].Type)
	var st protocol.Start
	require.NoError(t, msgs[0].Decode(&st))
	assert.Equal(t, 4, st.NodeNum)
}

func TestSendWhileDisconnected(t *testing.T) {
	ch := New(mem.New(), codec.JSON(), newRecorder(), stream.Options{Address: "nowhere"})
	assert.False(t, ch.Connected())
	err := ch.SendMessage(protocol.MustMessage(protocol.TypeStop, nil))
	assert.True(t, errors.Is(err, stream.ErrNotConnected))
}

func TestUnknownTypesShareOneLabel(t *testing.T) {
	f := setup(t)
	srv := f.accept(t)
	defer srv.Close()

	unknown := observability.MessagesIn.WithLabelValues("unknown")
	before := testutil.ToFloat64(unknown)

	for _, typ := range []string{"Telemetry-7f3a", "Telemetry-9c01"} {
		_, err := srv.Write(frame(t, typ, nil))
		require.NoError(t, err)
		assert.Equal(t, typ, recv(t, f.rec.msgs, typ).Type)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(unknown))
	assert.False(t, observability.MessagesIn.DeleteLabelValues("Telemetry-7f3a"))
	assert.False(t, observability.MessagesIn.DeleteLabelValues("Telemetry-9c01"))
}
