// Package channel layers the frame codec over a stream client, turning raw
// bytes into protocol messages and back.
package channel

import (
	"context"

	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/stream"
	"github.com/Syracusa/ce-ef/pkg/transport"
)

// Handler receives channel events. Calls come from the stream's read
// goroutine, so messages arrive one at a time in wire order.
type Handler interface {
	HandleConnect()
	HandleMessage(m protocol.Message)
	HandleDisconnect(err error)
}

// Channel is a message-level view of one supervised backend connection.
type Channel struct {
	codec   codec.Codec
	handler Handler
	dec     *protocol.Decoder
	client  *stream.Client
}

func New(d transport.Dialer, c codec.Codec, h Handler, opts stream.Options) *Channel {
	ch := &Channel{codec: c, handler: h, dec: protocol.NewDecoder(c)}
	ch.client = stream.New(d, (*observer)(ch), opts)
	return ch
}

// Run supervises the underlying stream until ctx is cancelled.
func (ch *Channel) Run(ctx context.Context) error { return ch.client.Run(ctx) }

func (ch *Channel) Connected() bool { return ch.client.Connected() }

// SendMessage encodes m and hands it to the stream. While disconnected it
// returns stream.ErrNotConnected and m is lost.
func (ch *Channel) SendMessage(m protocol.Message) error {
	frame, err := protocol.Encode(ch.codec, m)
	if err != nil {
		return err
	}
	if err := ch.client.Send(frame); err != nil {
		return err
	}
	observability.MessagesOut.WithLabelValues(m.Type).Inc()
	return nil
}

// observer adapts Channel to stream.Observer without exporting the methods.
type observer Channel

func (o *observer) OnConnect() {
	o.dec.Reset()
	o.handler.HandleConnect()
}

func (o *observer) OnData(chunk []byte) {
	for _, m := range o.dec.Feed(chunk) {
		observability.MessagesIn.WithLabelValues(typeLabel(m.Type)).Inc()
		o.handler.HandleMessage(m)
	}
}

func (o *observer) OnClose(err error) { o.handler.HandleDisconnect(err) }

// typeLabel keeps the backend from growing the counter's label set.
func typeLabel(typ string) string {
	if protocol.Known(typ) {
		return typ
	}
	return "unknown"
}
