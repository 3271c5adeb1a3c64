// Package peer implements C3 PeerTable: the shared PeerId -> PeerHandle
// map Dispatcher, Broadcaster and PeerKeeper all hold handles into.
// Grounded on the teacher's probe/peer.go peerSet: an RWMutex map with a
// read lock for iteration and a write lock only around insert/remove.
package peer

import (
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// Id is the opaque, monotone identifier P2P assigns a peer at connect
// time (spec §3, PeerId). Stable for the peer's lifetime.
type Id uint64

// Handle owns the send half of a peer's outbound channel. Mutation is
// allowed only through Send; sends to a single Handle are serialized
// (spec §3, Concurrency) by the channel itself.
type Handle struct {
	id  Id
	out chan<- wire.Message
}

// NewHandle wraps the send side of a peer's outbound message channel.
func NewHandle(id Id, out chan<- wire.Message) *Handle {
	return &Handle{id: id, out: out}
}

// Id returns the handle's peer identity.
func (h *Handle) Id() Id { return h.id }

// Send enqueues msg for delivery to the peer, blocking while the outbound
// channel is full. A send on a channel its owner has already closed would
// panic in Go; Send recovers from that panic and returns ErrPeerGone.
func (h *Handle) Send(msg wire.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPeerGone
		}
	}()
	h.out <- msg
	return nil
}

// Table is the PeerId -> Handle map. Readers (broadcast, dispatch-reply)
// never block writers (register/unregister) for longer than the snapshot
// copy takes, matching the teacher's peerSet discipline.
type Table struct {
	mu    sync.RWMutex
	peers map[Id]*Handle
}

// New returns an empty Table.
func New() *Table {
	return &Table{peers: make(map[Id]*Handle)}
}

// Register adds a peer's handle, replacing any prior handle for the same
// Id (reconnect with a reused counter would be a P2P-layer bug, but
// Register does not itself guard against it).
func (t *Table) Register(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[h.id] = h
}

// Unregister removes a peer, called exactly when P2P removes it from
// service (spec §3, PeerHandle lifecycle).
func (t *Table) Unregister(id Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// Get returns the handle for id, if connected.
func (t *Table) Get(id Id) (*Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.peers[id]
	return h, ok
}

// Len reports the number of connected peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// Snapshot returns a stable copy of the current peer set for iteration
// (e.g. Broadcaster fan-out) without holding the table lock across sends.
func (t *Table) Snapshot() []*Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Handle, 0, len(t.peers))
	for _, h := range t.peers {
		out = append(out, h)
	}
	return out
}
