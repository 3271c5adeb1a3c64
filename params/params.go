// Package params bundles per-network consensus parameters with the SPV
// constants that are network-independent, the way the teacher lineage
// keeps named constants in their own small package.
package params

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// MaxProtocolVersion is the highest wire protocol version this node
// advertises during the (externally handled) handshake.
const MaxProtocolVersion = 70001

// ReorgBanScore is the ban-score delta for a header batch that fails
// proof-of-work validation.
const ReorgBanScore = 100

// Network wraps a *chaincfg.Params. The pointer is embedded, so every
// chaincfg field (PowLimit and the retarget timings chain reads, the
// genesis block, DNS seeds, default port) is available directly on it.
type Network struct {
	*chaincfg.Params
}

// Mainnet, Testnet3 and Regtest are the three networks this node supports,
// matching spec §6's `network ∈ {mainnet, testnet, regtest, …}`.
var (
	Mainnet  = Network{Params: &chaincfg.MainNetParams}
	Testnet3 = Network{Params: &chaincfg.TestNet3Params}
	Regtest  = Network{Params: &chaincfg.RegressionNetParams}
)

// ByName resolves a network by its conventional CLI name.
func ByName(name string) (Network, bool) {
	switch name {
	case "mainnet":
		return Mainnet, true
	case "testnet", "testnet3":
		return Testnet3, true
	case "regtest":
		return Regtest, true
	default:
		return Network{}, false
	}
}
