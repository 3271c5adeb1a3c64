package dispatcher

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// expandBitsForTest is a standalone copy of chain's compact-bits expansion
// (chain/pow.go), needed here only to grind a nonce that satisfies
// regtest's target; chain's own version is unexported.
func expandBitsForTest(bits uint32) *big.Int {
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
	return &target
}

func hashToBigForTest(h [32]byte) *big.Int {
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return new(big.Int).SetBytes(h[:])
}

func mineHeader(t *testing.T, h *wire.BlockHeader) {
	t.Helper()
	target := expandBitsForTest(h.Bits)
	for i := 0; i < 1_000_000; i++ {
		if hashToBigForTest(h.BlockHash()).Cmp(target) <= 0 {
			return
		}
		h.Nonce++
	}
	t.Fatal("failed to mine a regtest header")
}

func TestDispatchHeadersExtendsTipAndRequestsMore(t *testing.T) {
	d, headers, _, out, _ := newTestDispatcher(t)
	tip, ok := headers.Tip()
	require.True(t, ok)

	msg := wire.NewMsgHeaders()
	h := wire.NewBlockHeader(0, &tip.Hash, &tip.Hash, tip.Bits, 0)
	h.Timestamp = tip.Time.Add(10 * time.Minute)
	mineHeader(t, h)
	require.NoError(t, msg.AddBlockHeader(h))

	res := d.Dispatch(1, msg)
	require.Equal(t, Height(1), res)

	newTip, _ := headers.Tip()
	require.EqualValues(t, 1, newTip.Height)

	select {
	case m := <-out:
		_, ok := m.(*wire.MsgGetHeaders)
		require.True(t, ok)
	default:
		t.Fatal("expected a follow-up GetHeaders request")
	}
}

func TestDispatchHeadersEmptyBatchIgnored(t *testing.T) {
	d, _, _, out, _ := newTestDispatcher(t)

	res := d.Dispatch(1, wire.NewMsgHeaders())
	require.Equal(t, Ignored(), res)

	select {
	case m := <-out:
		t.Fatalf("expected no follow-up request, got %T", m)
	default:
	}
}

func TestDispatchHeadersAllKnownBatchDoesNotRequestMore(t *testing.T) {
	d, headers, _, out, _ := newTestDispatcher(t)
	tip, ok := headers.Tip()
	require.True(t, ok)

	msg := wire.NewMsgHeaders()
	h := wire.NewBlockHeader(0, &tip.Hash, &tip.Hash, tip.Bits, 0)
	h.Timestamp = tip.Time.Add(10 * time.Minute)
	mineHeader(t, h)
	require.NoError(t, msg.AddBlockHeader(h))

	res := d.Dispatch(1, msg)
	require.Equal(t, Height(1), res)
	<-out // drain the follow-up GetHeaders from the first, tip-moving call

	// Re-sending the exact same already-known header must not look like
	// progress: chain.Store.AddHeader succeeds again (it's idempotent) but
	// MovedTip is false, so this must not trigger another requestHeaders.
	res = d.Dispatch(1, msg)
	require.Equal(t, Ack(), res)

	select {
	case m := <-out:
		t.Fatalf("expected no follow-up request for an all-known batch, got %T", m)
	default:
	}
}

func TestDispatchHeadersBadProofOfWorkBans(t *testing.T) {
	d, headers, _, _, _ := newTestDispatcher(t)
	tip, _ := headers.Tip()

	msg := wire.NewMsgHeaders()
	// mainnet-difficulty bits: with nonce left at 0 the header's hash will,
	// with overwhelming probability, exceed the (much harder) target its own
	// bits encode, since we need the check to fail, not succeed.
	h := wire.NewBlockHeader(0, &tip.Hash, &tip.Hash, 0x1d00ffff, 0)
	h.Timestamp = tip.Time.Add(time.Minute)
	require.NoError(t, msg.AddBlockHeader(h))

	res := d.Dispatch(1, msg)
	require.Equal(t, BanBadProofOfWork, res)

	stillTip, _ := headers.Tip()
	require.Equal(t, tip.Hash, stillTip.Hash)
}
