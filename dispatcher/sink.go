package dispatcher

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/chain"
)

// BlockSink is the external block store spec §4.4.2 hands Block messages
// to; the dispatcher itself only stores headers and passes full blocks to
// whichever sink it was given (package node supplies one that keeps them
// in a bounded in-memory ring, or on disk in server mode).
type BlockSink interface {
	// StoreBlock persists b. An error is logged and otherwise ignored: a
	// failed store must not itself change the ProcessResult handed back
	// to the delivering peer.
	StoreBlock(b *wire.MsgBlock) error

	// BlockDisconnected notifies the upper layer that header was removed
	// from the best chain by a reorg. Called once per disconnected header,
	// old-tip-first, after the corresponding HeaderStore transaction has
	// committed (spec §5, Ordering guarantees).
	BlockDisconnected(header *chain.Header)
}
