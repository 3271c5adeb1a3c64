package chain

import (
	"math/big"
	"time"

	"github.com/probeum/spvnode/params"
)

// blocksPerRetarget is how many headers separate two retarget points on
// net, derived the same way btcsuite/btcd's blockchain package derives it
// from chaincfg.Params.TargetTimespan / TargetTimePerBlock.
func blocksPerRetarget(net params.Network) int32 {
	return int32(net.TargetTimespan / net.TargetTimePerBlock)
}

// requiredBits computes the bits field a header at parentHeight+1 must
// carry, given its immediate parent and a callback to read the timestamp
// of an ancestor at an arbitrary height (used only at retarget points).
// Ported from the standard Bitcoin retarget rule that every btcd-family
// chain in the examples (including the teranode chaincfg package) encodes
// as per-network PowLimit/TargetTimespan/TargetTimePerBlock constants.
func requiredBits(net params.Network, parent *Header, newTime time.Time, ancestorTime func(height int32) (time.Time, bool)) uint32 {
	interval := blocksPerRetarget(net)
	nextHeight := parent.Height + 1

	if nextHeight%interval != 0 {
		if net.ReduceMinDifficulty {
			if newTime.After(parent.Time.Add(2 * net.TargetTimePerBlock)) {
				return compactFromBig(net.PowLimit)
			}
		}
		return parent.Bits
	}

	firstHeight := nextHeight - interval
	firstTime, ok := ancestorTime(firstHeight)
	if !ok {
		return parent.Bits
	}

	actualTimespan := parent.Time.Sub(firstTime)
	minSpan := net.TargetTimespan / time.Duration(net.RetargetAdjustmentFactor)
	maxSpan := net.TargetTimespan * time.Duration(net.RetargetAdjustmentFactor)
	if actualTimespan < minSpan {
		actualTimespan = minSpan
	}
	if actualTimespan > maxSpan {
		actualTimespan = maxSpan
	}

	oldTarget := expandBits(parent.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(net.TargetTimespan)))
	if newTarget.Cmp(net.PowLimit) > 0 {
		newTarget = new(big.Int).Set(net.PowLimit)
	}
	return compactFromBig(newTarget)
}
