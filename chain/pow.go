package chain

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/probeum/spvnode/params"
)

// bigOne mirrors btcsuite/btcd/blockchain's compact-bits helpers;
// expandBits/compactFromBig are a direct port of that encoding (a base-256
// scaled-integer with a one-byte exponent), needed here before a Header is
// ever handed to btcd's own blockchain package (which this module does not
// otherwise depend on).
var (
	bigOne = big.NewInt(1)
)

// expandBits turns the compact "bits" encoding carried on the wire into the
// full target. Grounded on the reference algorithm the teranode and btcd
// lineages both implement identically (see other_examples bsv-teranode
// chaincfg/params.go for the per-network PowLimit constants this is
// checked against).
func expandBits(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := bits >> 24

	var target big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target.SetInt64(int64(mantissa))
	} else {
		target.SetInt64(int64(mantissa))
		target.Lsh(&target, 8*(uint(exponent)-3))
	}

	// Bit 0x00800000 of the mantissa is a sign bit in the original Satoshi
	// encoding; a negative target is invalid and collapses to zero.
	if bits&0x00800000 != 0 {
		return big.NewInt(0)
	}
	return &target
}

// compactFromBig re-encodes a target back into the compact representation,
// the inverse of expandBits, needed for retarget computation.
func compactFromBig(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}
	exponent := uint(len(target.Bytes()))
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(target.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		var t big.Int
		t.Rsh(target, 8*(exponent-3))
		mantissa = uint32(t.Bits()[0])
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// workFromBits is the cumulative-work contribution of a single header,
// 2^256 / (target+1), matching spec §3's definition of work and computed
// in uint256 since the chain-length sum needs to stay a fixed-width type
// for fast comparisons rather than an ever-growing big.Int.
func workFromBits(bits uint32) *uint256.Int {
	target := expandBits(bits)
	if target.Sign() <= 0 {
		return uint256.NewInt(0)
	}
	denom := new(big.Int).Add(target, bigOne)

	numerator := new(big.Int).Lsh(bigOne, 256)
	work := new(big.Int).Div(numerator, denom)

	w, overflow := uint256.FromBig(work)
	if overflow {
		return uint256.NewInt(0)
	}
	return w
}

// hashToBig reinterprets a header hash (stored internally in the same
// byte order the wire protocol uses) as the big-endian integer the target
// comparison needs, by reversing it.
func hashToBig(h [32]byte) *big.Int {
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return new(big.Int).SetBytes(h[:])
}

// checkProofOfWork reports whether hashLE, the header hash read as a
// little-endian integer, is at or below the target encoded by bits, and
// that bits itself does not exceed the network's PowLimit.
func checkProofOfWork(net params.Network, hashLE *big.Int, bits uint32) bool {
	target := expandBits(bits)
	if target.Sign() <= 0 {
		return false
	}
	if target.Cmp(net.PowLimit) > 0 {
		return false
	}
	return hashLE.Cmp(target) <= 0
}
