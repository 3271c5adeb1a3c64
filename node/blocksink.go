package node

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/chain"
	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/storage"
)

// blocksRingSize bounds the in-memory block history kept by a non-server
// node: enough to answer a re-request for a block this node itself just
// downloaded, not a general archive.
const blocksRingSize = 64

var blockPrefix = []byte("b")

func blockKey(hash common.Hash) []byte {
	key := make([]byte, len(blockPrefix)+len(hash))
	copy(key, blockPrefix)
	copy(key[len(blockPrefix):], hash[:])
	return key
}

// blockSink implements dispatcher.BlockSink. With db set it persists
// every delivered block (the "server: bool" Configuration input, spec
// §6); otherwise it keeps only the most recent blocksRingSize blocks in
// memory, preserving original_source/node.rs's distinction between an
// SPV-only node and one that also serves blocks to others.
type blockSink struct {
	mu  sync.Mutex
	db  storage.KeyValueStore // nil unless server mode
	log log.Logger

	ring   []*wire.MsgBlock
	cursor int
}

func newBlockSink(db storage.KeyValueStore, logger log.Logger) *blockSink {
	s := &blockSink{db: db, log: logger}
	if db == nil {
		s.ring = make([]*wire.MsgBlock, blocksRingSize)
	}
	return s
}

func (s *blockSink) StoreBlock(b *wire.MsgBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		var buf bytes.Buffer
		if err := b.Serialize(&buf); err != nil {
			return err
		}
		return s.db.Put(blockKey(b.BlockHash()), buf.Bytes())
	}

	s.ring[s.cursor%len(s.ring)] = b
	s.cursor++
	return nil
}

func (s *blockSink) BlockDisconnected(header *chain.Header) {
	s.log.Debug("block disconnected by reorg", "hash", header.Hash, "height", header.Height)
}
