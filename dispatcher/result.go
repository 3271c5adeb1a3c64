// Package dispatcher implements C5: the message-processing state machine
// that owns HeaderStore and AddressStore writes and tells the external
// P2P layer whether to ack, advertise a new height, ignore, or apply a
// ban-score delta to the peer that sent a message. Authoritative
// semantics are original_source/dispatcher.rs (spec.md §4.9 names this,
// not node.rs, as the source of truth); the Go shape — a single Dispatch
// entry point switching on concrete wire.Message types to unexported
// handlers — follows the teacher's probe/handler_probe.go Handle method.
package dispatcher

import "github.com/probeum/spvnode/common"

// Kind is the ProcessResult discriminant (spec §3).
type Kind int

const (
	KindAck Kind = iota
	KindHeight
	KindIgnored
	KindBan
)

// Result is the outcome of one Dispatch call: what P2P should do with the
// peer that produced the message.
type Result struct {
	Kind     Kind
	Height   int32
	BanDelta uint32
}

// Ack tells P2P the message was handled with no further action needed.
func Ack() Result { return Result{Kind: KindAck} }

// Height tells P2P this node's new best-chain height, for advertisement in
// future version handshakes.
func Height(h int32) Result { return Result{Kind: KindHeight, Height: h} }

// Ignored tells P2P nothing of note happened.
func Ignored() Result { return Result{Kind: KindIgnored} }

// Ban tells P2P to apply delta to the peer's ban score.
func Ban(delta uint32) Result { return Result{Kind: KindBan, BanDelta: delta} }

// BanBadProofOfWork, BanUnwantedInv and BanUnknownMessage are the three ban
// deltas this package ever issues, named after spec §6's Constants.
var (
	BanBadProofOfWork = Ban(common.BanScoreBadProofOfWork)
	BanUnwantedInv    = Ban(common.BanScoreUnwantedInv)
	BanUnknownMessage = Ban(common.BanScoreUnknownMessage)

	// BanCheckpointMismatch is issued when a header at a whitelisted
	// height (see dispatcher.WithWhitelist) disagrees with the expected
	// hash; scored the same as bad proof-of-work since both indicate a
	// peer feeding a chain this node should never accept.
	BanCheckpointMismatch = Ban(common.BanScoreBadProofOfWork)
)
