package node

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// Transport abstracts the out-of-scope P2P layer (spec §1: framing,
// handshake, encryption, socket I/O). It is responsible for registering
// a connected peer's Handle in Node.Peers and calling Node.Connected,
// then forwarding every inbound message to Node.Dispatch.
type Transport interface {
	// Dial opens a connection to addr and returns a channel that
	// receives exactly one value when the connection later terminates
	// (nil for a graceful close, non-nil for a failure) — the same
	// "termination future" contract keeper.Dial expects.
	Dial(ctx context.Context, addr *wire.NetAddress) <-chan error

	// Listen accepts inbound connections on addr until ctx is cancelled
	// or an unrecoverable error occurs.
	Listen(ctx context.Context, addr string) error
}
