// Package chain implements C1 HeaderStore: the transactional header tree,
// proof-of-work and retarget validation, best-chain selection and reorg
// accounting described in spec §3 and §4.1.
//
// Grounded on original_source/dispatcher.rs's add_header/header_locators
// semantics, with the Go shape (exported Header, *Store, write-locked
// Txn) following core/types/block.go and core/state/journal.go in the
// teacher.
package chain

import (
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"

	"github.com/probeum/spvnode/common"
)

// Header is a validated, positioned node in the header tree. Identity is
// Hash (spec §3).
type Header struct {
	Hash       common.Hash
	PrevHash   common.Hash
	MerkleRoot common.Hash
	Time       time.Time
	Bits       uint32
	Nonce      uint32
	Height     int32
	Work       *uint256.Int
}

// FromWire builds an unpositioned Header from a wire.BlockHeader; Height
// and Work are filled in by the Store once the parent is known.
func FromWire(h *wire.BlockHeader) *Header {
	return &Header{
		Hash:       h.BlockHash(),
		PrevHash:   h.PrevBlock,
		MerkleRoot: h.MerkleRoot,
		Time:       h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
}

// Wire reconstructs the wire.BlockHeader this Header was derived from.
// Header does not carry the block version, so the result always has
// version 0 and hashes to Hash only for a version-0 header.
func (h *Header) Wire() *wire.BlockHeader {
	wh := wire.NewBlockHeader(0, &h.PrevHash, &h.MerkleRoot, h.Bits, h.Nonce)
	wh.Timestamp = h.Time
	return wh
}
