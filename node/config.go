package node

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/params"
)

// Config bundles the Constructor's configuration inputs, spec §6
// unchanged plus the supplements SPEC_FULL.md adds (Whitelist,
// SyncTimeout).
type Config struct {
	Network   params.Network
	UserAgent string

	// DataPath is the filesystem directory under which the header,
	// address and (if Server) block stores are opened. Empty opens all
	// three in-memory, matching spec §6's "(or in-memory marker)".
	DataPath string

	// Listen is the set of local addresses to accept inbound connections
	// on; empty disables NAT port mapping and inbound serving entirely.
	Listen []string

	// BootPeers are dialed eagerly and unconditionally before the
	// PeerKeeper loop's first refill, per original_source/constructor.rs.
	BootPeers []*wire.NetAddress

	MinConnections int
	NoDNS          bool

	// Server, if true, also opens a full-block store and keeps delivered
	// blocks on disk rather than in a bounded in-memory ring.
	Server bool

	// Whitelist supplements §4.4's Connected event with known-good
	// (height, hash) checkpoints; a header reaching a whitelisted height
	// with a disagreeing hash bans the peer that sent it. Grounded on
	// original_source/node.rs's checkpoint table (see DESIGN.md,
	// SPEC_FULL.md SUPPLEMENTED FEATURES #1).
	Whitelist map[int32]common.Hash

	// SyncTimeout bounds how long a peer may go without answering a
	// GetHeaders before it is dropped (SPEC_FULL.md SUPPLEMENTED
	// FEATURES #2). Zero uses defaultSyncTimeout.
	SyncTimeout time.Duration
}

// defaultSyncTimeout matches the teacher's syncChallengeTimeout order of
// magnitude for a single round-trip request/response exchange.
const defaultSyncTimeout = 30 * time.Second

func (c Config) syncTimeout() time.Duration {
	if c.SyncTimeout <= 0 {
		return defaultSyncTimeout
	}
	return c.SyncTimeout
}
