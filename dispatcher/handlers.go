package dispatcher

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/addrmgr"
	"github.com/probeum/spvnode/peer"
)

func (d *Dispatcher) handlePing(pid peer.Id, m *wire.MsgPing) Result {
	if handle, ok := d.peers.Get(pid); ok {
		if err := handle.Send(wire.NewMsgPong(m.Nonce)); err != nil {
			d.log.Debug("pong send failed", "peer", pid, "err", err)
		}
	}
	return Ack()
}

// handleInv implements spec §4.4's Inv row: any non-Block entry bans the
// peer immediately; otherwise an unknown Block entry triggers another
// headers request, and an all-known batch is ignored.
func (d *Dispatcher) handleInv(pid peer.Id, m *wire.MsgInv) Result {
	if len(m.InvList) == 0 {
		return Ignored()
	}
	anyUnknown := false
	for _, inv := range m.InvList {
		if inv.Type != wire.InvTypeBlock {
			return BanUnwantedInv
		}
		if _, ok := d.headers.GetHeader(inv.Hash); !ok {
			anyUnknown = true
		}
	}
	if anyUnknown {
		d.requestHeaders(pid)
		return Ack()
	}
	return Ignored()
}

// handleBlock implements spec §4.4.2: store the block, pop the download
// queue only if it matches the front, then request more headers.
func (d *Dispatcher) handleBlock(pid peer.Id, m *wire.MsgBlock) Result {
	if err := d.sink.StoreBlock(m); err != nil {
		d.log.Warn("block store failed", "peer", pid, "err", err)
	}
	d.queue.PopIf(m.BlockHash())
	d.requestHeaders(pid)
	return Ack()
}

// handleAddr implements spec §4.4's Addr row: only routable, service-
// qualified, fresh-timestamped addresses are stored.
func (d *Dispatcher) handleAddr(pid peer.Id, m *wire.MsgAddr) Result {
	now := time.Now()
	txn := d.addrs.Begin()
	stored := false
	for _, a := range m.AddrList {
		if !addrmgr.IsFresh(a.Timestamp, now) {
			continue
		}
		if txn.StorePeer(a, a.Timestamp, 0) {
			stored = true
		}
	}
	if err := txn.Commit(); err != nil {
		d.log.Warn("addr commit failed", "peer", pid, "err", err)
		return Ignored()
	}
	if stored {
		return Ack()
	}
	return Ignored()
}
