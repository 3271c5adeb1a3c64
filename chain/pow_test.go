package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/params"
)

func TestExpandCompactRoundTrip(t *testing.T) {
	for _, bits := range []uint32{0x1d00ffff, 0x1c3fffc0, 0x207fffff} {
		target := expandBits(bits)
		got := compactFromBig(target)
		require.Equal(t, bits, got)
	}
}

func TestCheckProofOfWorkRejectsBitsAboveLimit(t *testing.T) {
	tooEasy := compactFromBig(params.Mainnet.PowLimit)
	// raise the limit's exponent byte by one step so the encoded target
	// exceeds PowLimit
	bits := tooEasy + 0x01000000
	ok := checkProofOfWork(params.Mainnet, hashToBig([32]byte{0: 1}), bits)
	require.False(t, ok)
}
