package dispatcher

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/addrmgr"
	"github.com/probeum/spvnode/chain"
	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/download"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/peer"
)

// Dispatcher is C5. It owns no lock of its own: every mutation goes
// through chain.Store or addrmgr.Store, which already enforce the lock
// order HeaderStore ≺ AddressStore ≺ PeerTable (spec §5).
type Dispatcher struct {
	headers   *chain.Store
	addrs     *addrmgr.Store
	peers     *peer.Table
	queue     *download.Queue
	hints     chan<- download.Hint
	sink      BlockSink
	whitelist map[int32]common.Hash

	// onGetHeaders, if set, is called every time requestHeaders sends a
	// GetHeaders to a peer. It lets a caller (node.syncTimers) arm a
	// reply-timeout guard without this package knowing anything about
	// timers or disconnection policy.
	onGetHeaders func(peer.Id)

	log log.Logger
}

// Option configures optional Dispatcher behavior not present in every
// deployment.
type Option func(*Dispatcher)

// WithWhitelist supplies known-good (height, hash) checkpoints. A header
// that reaches a whitelisted height with a disagreeing hash bans the peer
// that delivered it — a guard against an eclipse attack feeding a false
// chain from genesis, supplemented from original_source/node.rs (spec §4.4
// is silent on it and no Non-goal excludes it).
func WithWhitelist(wl map[int32]common.Hash) Option {
	return func(d *Dispatcher) { d.whitelist = wl }
}

// WithOnGetHeaders registers fn to be called with the target peer every
// time this Dispatcher sends it a GetHeaders, grounded on the teacher's
// probe/handler.go arming its syncDrop timer right after
// RequestHeadersByNumber.
func WithOnGetHeaders(fn func(peer.Id)) Option {
	return func(d *Dispatcher) { d.onGetHeaders = fn }
}

// New wires a Dispatcher over its four stores/tables and the channel it
// signals BlockDownloader on (spec §2, Data flow).
func New(headers *chain.Store, addrs *addrmgr.Store, peers *peer.Table, queue *download.Queue, hints chan<- download.Hint, sink BlockSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		headers: headers,
		addrs:   addrs,
		peers:   peers,
		queue:   queue,
		hints:   hints,
		sink:    sink,
		log:     log.New("module", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connected handles the "successful handshake" pseudo-event: Dispatcher
// asks the new peer to extend past our own tip (spec §4.4, Connected
// event).
func (d *Dispatcher) Connected(pid peer.Id) Result {
	d.requestHeaders(pid)
	return Ack()
}

// Dispatch routes one (peer, message) pair to its handler. Messages from
// a single peer must be delivered to Dispatch in arrival order; messages
// from different peers may interleave arbitrarily (spec §5, Ordering
// guarantees) — Dispatch itself does not serialize across peers, it relies
// on the caller for per-peer ordering.
func (d *Dispatcher) Dispatch(pid peer.Id, msg wire.Message) Result {
	switch m := msg.(type) {
	case *wire.MsgPing:
		return d.handlePing(pid, m)
	case *wire.MsgHeaders:
		return d.handleHeaders(pid, m)
	case *wire.MsgInv:
		return d.handleInv(pid, m)
	case *wire.MsgBlock:
		return d.handleBlock(pid, m)
	case *wire.MsgAddr:
		return d.handleAddr(pid, m)
	default:
		return BanUnknownMessage
	}
}

// requestHeaders builds and sends GetHeaders(locator, stop=locator[0]) to
// pid, per spec §4.4.3: always derived from header_locators, stop_hash is
// the locator's first (tip) entry so the peer extends beyond our tip
// without needing a priori knowledge of it.
func (d *Dispatcher) requestHeaders(pid peer.Id) {
	locator, err := d.headers.Locator()
	if err != nil {
		d.log.Debug("no tip yet, skipping getheaders", "peer", pid)
		return
	}
	handle, ok := d.peers.Get(pid)
	if !ok {
		return
	}

	getHeaders := wire.NewMsgGetHeaders()
	for i := range locator {
		h := locator[i]
		getHeaders.AddBlockLocatorHash(&h)
	}
	getHeaders.HashStop = locator[0]

	if err := handle.Send(getHeaders); err != nil {
		d.log.Debug("getheaders send failed", "peer", pid, "err", err)
		return
	}
	if d.onGetHeaders != nil {
		d.onGetHeaders(pid)
	}
}

// signalDownloader pushes a hint that pid is worth asking for the queue
// front, without blocking if BlockDownloader is momentarily behind.
func (d *Dispatcher) signalDownloader(pid peer.Id) {
	select {
	case d.hints <- download.Hint{Peer: pid}:
	default:
	}
}
