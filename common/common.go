// Package common holds small value types and constants shared by every
// other package in this module.
package common

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash identifies a header or transaction by its double-SHA256 digest.
type Hash = chainhash.Hash

// ZeroHash is the all-zero sentinel hash used as "no parent"/"no stop".
var ZeroHash Hash

// NodeNetwork and NodeWitness are the two service bits this node requires
// a peer address to advertise before it is considered worth persisting.
// See spec §3 (Address record) and §6 (Services acceptance mask).
const (
	NodeNetwork uint64 = 1 << 0
	NodeWitness uint64 = 1 << 3
	ServiceMask uint64 = NodeNetwork | NodeWitness
)

// AddrFreshnessWindow is how recent a timestamped address must be to be
// stored. The value (3*60*30 = 5400s) is preserved exactly as specified;
// the "3 hours" label attached to it upstream is wrong (5400s is 1.5h),
// but the constant itself is authoritative — see DESIGN.md Open Questions.
const AddrFreshnessWindow = 5400 * time.Second

// Ban-score deltas the dispatcher attaches to a ProcessResult. Enforcement
// of any threshold is the P2P layer's policy, not this module's.
const (
	BanScoreBadProofOfWork = 100
	BanScoreUnwantedInv    = 10
	BanScoreUnknownMessage = 1
)

// PrettyDuration formats d the way this codebase's teacher lineage does in
// its log lines: under a second as milliseconds, under a minute as seconds
// (both with three decimals), a minute and up rounded to the nearest second.
type PrettyDuration time.Duration

func (d PrettyDuration) String() string {
	td := time.Duration(d)
	if td < time.Second {
		return fmt.Sprintf("%.3fms", float64(td)/float64(time.Millisecond))
	}
	if td < time.Minute {
		return fmt.Sprintf("%.3fs", td.Seconds())
	}
	return td.Round(time.Second).String()
}
