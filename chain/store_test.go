package chain

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/params"
	"github.com/probeum/spvnode/storage"
)

// mine increments nonce until the header satisfies Regtest's (trivially
// low) proof-of-work target, matching how other_examples' toy SPV client
// and every btcd-family test fixture construct synthetic chains.
func mine(t *testing.T, h *wire.BlockHeader) {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		if checkProofOfWork(params.Regtest, hashToBig(h.BlockHash()), h.Bits) {
			return
		}
		h.Nonce++
	}
	t.Fatal("failed to mine a regtest header in time")
}

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	s, err := Open(db, params.Regtest)
	require.NoError(t, err)
	return s
}

func child(parent *Header, bits uint32, ts time.Time) *wire.BlockHeader {
	h := wire.NewBlockHeader(0, &parent.Hash, &parent.Hash, bits, 0)
	h.Timestamp = ts
	return h
}

func TestStoreExtendsTrunkLinearly(t *testing.T) {
	s := newStore(t)
	tip, ok := s.Tip()
	require.True(t, ok)
	require.EqualValues(t, 0, tip.Height)

	ts := tip.Time
	for i := 0; i < 5; i++ {
		ts = ts.Add(10 * time.Minute)
		h := child(tip, tip.Bits, ts)
		mine(t, h)

		txn := s.Begin()
		res, err := txn.AddHeader(h)
		require.NoError(t, err)
		require.NoError(t, txn.Commit())

		require.True(t, res.MovedTip)
		require.Empty(t, res.Unwound)
		tip = res.Stored
	}

	newTip, _ := s.Tip()
	require.EqualValues(t, 5, newTip.Height)
}

func TestStoreRejectsOrphan(t *testing.T) {
	s := newStore(t)
	tip, _ := s.Tip()

	var fakeParent Header
	fakeParent.Hash[0] = 0xff
	h := child(&fakeParent, tip.Bits, tip.Time.Add(time.Minute))
	mine(t, h)

	txn := s.Begin()
	_, err := txn.AddHeader(h)
	txn.Discard()
	require.ErrorIs(t, err, ErrOrphanHeader)
}

func TestStoreReorgReportsUnwoundAndForward(t *testing.T) {
	s := newStore(t)
	genesis, _ := s.Tip()

	mineOnto := func(parent *Header, minutes int) *Header {
		h := child(parent, parent.Bits, parent.Time.Add(time.Duration(minutes)*time.Minute))
		mine(t, h)
		txn := s.Begin()
		res, err := txn.AddHeader(h)
		require.NoError(t, err)
		require.NoError(t, txn.Commit())
		return res.Stored
	}

	// Build the initial best chain: genesis -> a1 -> a2.
	a1 := mineOnto(genesis, 10)
	a2 := mineOnto(a1, 10)
	require.EqualValues(t, 2, a2.Height)

	// Build a competing branch off genesis, one block short of a2, then
	// extend it past a2 to force a reorg.
	b1 := mineOnto(genesis, 11)
	require.EqualValues(t, 1, b1.Height)

	tip, _ := s.Tip()
	require.Equal(t, a2.Hash, tip.Hash) // still on the a-branch

	b2 := mineOnto(b1, 11)

	h3 := child(b2, b2.Bits, b2.Time.Add(10*time.Minute))
	mine(t, h3)
	txn := s.Begin()
	res, err := txn.AddHeader(h3)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	require.True(t, res.MovedTip)
	require.Len(t, res.Unwound, 2) // a2, a1 disconnected, old-tip-first
	require.Equal(t, a2.Hash, res.Unwound[0].Hash)
	require.Equal(t, a1.Hash, res.Unwound[1].Hash)
	require.Len(t, res.Forward, 3) // b1, b2, h3 connected, lowest height first
	require.Equal(t, b1.Hash, res.Forward[0].Hash)
	require.Equal(t, b2.Hash, res.Forward[1].Hash)
	require.Equal(t, h3.BlockHash(), res.Forward[2].Hash)

	_ = b2
}
