// Package transport defines how the sync layer reaches the simulation
// backend and provides stream implementations (tcp, winpipe, mem).
//
// Key concepts:
// - Dialer: opens a single ordered byte stream (net.Conn) to an address
// - Transport: a Dialer that can also Listen; used by the mock backend
//
// Framing is not done here: streams carry raw bytes and the protocol
// package splits them into frames.
package transport
