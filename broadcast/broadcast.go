// Package broadcast implements C4 Broadcaster: fan-out of an outbound
// transaction to every peer, grounded on original_source/dispatcher.rs's
// Broadcaster.broadcast_transaction and the teacher's BroadcastTransactions
// snapshot-then-send loop in probe/handler.go.
package broadcast

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/peer"
)

// Broadcaster fans a transaction out to every currently connected peer.
type Broadcaster struct {
	table *peer.Table
	log   log.Logger
}

// New returns a Broadcaster over table.
func New(table *peer.Table) *Broadcaster {
	return &Broadcaster{table: table, log: log.New("module", "broadcast")}
}

// Broadcast sends tx to every peer in a single consistent snapshot of the
// table, the way dispatcher.rs's broadcast_transaction does: a dead peer's
// send error is logged and swallowed, never propagated, so one stale
// connection can't fail delivery to the rest (spec §4.3.1).
func (b *Broadcaster) Broadcast(tx *wire.MsgTx) {
	snapshot := b.table.Snapshot()
	for _, h := range snapshot {
		if err := h.Send(tx); err != nil {
			b.log.Debug("broadcast send failed", "peer", h.Id(), "err", err)
		}
	}
}
