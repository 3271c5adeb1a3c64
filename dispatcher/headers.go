package dispatcher

import (
	"errors"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/chain"
	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/peer"
)

// handleHeaders implements spec §4.4.1. The reference implementation's
// inner-loop break-and-re-read-tip dance exists only because it caches the
// tip height in a local before the loop; chain.Store.AddHeader already
// mutates the live trunk on every call (including across a reorg), so a
// single flat loop here observes the same sequence of outcomes without
// needing to restart iteration.
func (d *Dispatcher) handleHeaders(pid peer.Id, m *wire.MsgHeaders) Result {
	if _, ok := d.headers.Tip(); !ok {
		return Ignored()
	}
	if len(m.Headers) == 0 {
		return Ignored()
	}

	txn := d.headers.Begin()
	var (
		movedTip     bool
		newHeight    int32
		disconnected []*chain.Header
		connected    []*chain.Header
	)

	for _, wh := range m.Headers {
		res, err := txn.AddHeader(wh)
		if err != nil {
			if errors.Is(err, chain.ErrBadProofOfWork) {
				txn.Discard()
				return BanBadProofOfWork
			}
			txn.Discard()
			return Ignored()
		}
		if want, ok := d.whitelist[res.Stored.Height]; ok && want != res.Stored.Hash {
			txn.Discard()
			return BanCheckpointMismatch
		}
		if len(res.Unwound) > 0 {
			disconnected = append(disconnected, res.Unwound...)
		}
		if res.MovedTip {
			movedTip = true
			newHeight = res.Stored.Height
			if len(res.Forward) > 0 {
				connected = append(connected, res.Forward...)
			} else {
				connected = append(connected, res.Stored)
			}
		}
	}

	if err := txn.Commit(); err != nil {
		return Ignored()
	}

	for _, h := range disconnected {
		d.sink.BlockDisconnected(h)
	}

	if len(connected) > 0 {
		hashes := make([]common.Hash, len(connected))
		for i, h := range connected {
			hashes[i] = h.Hash
		}
		d.queue.Enqueue(hashes)
		d.signalDownloader(pid)
	}

	if movedTip {
		d.requestHeaders(pid)
		return Height(newHeight)
	}
	return Ack()
}
