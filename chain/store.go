package chain

import (
	"encoding/binary"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/params"
	"github.com/probeum/spvnode/storage"
)

func unixTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

var headerPrefix = []byte("h")

func headerKey(hash common.Hash) []byte {
	return append(append([]byte{}, headerPrefix...), hash[:]...)
}

// node is the in-memory representation of a positioned header; the header
// tree itself (main chain plus any known side branches) lives only in
// memory, rebuilt from the on-disk prefix scan at startup, the same
// cache-over-a-transactional-store split storage.LevelDB is built for.
type node struct {
	header *Header
	parent *node
}

// AddResult is the outcome of adding one header, the Go shape of
// original_source/dispatcher.rs's add_header Option<(StoredHeader, Vec,
// Vec)> return.
type AddResult struct {
	Stored   *Header
	Unwound  []*Header // old tip first, headers the chain disconnected
	Forward  []*Header // lowest height first, headers the chain connected
	MovedTip bool
}

// Store is C1 HeaderStore: the single-writer/multi-reader transactional
// header tree. Lock order relative to addrmgr.Store and peer.Table is
// Store ≺ addrmgr.Store ≺ peer.Table (spec §3, Concurrency).
type Store struct {
	mu  sync.RWMutex
	db  storage.KeyValueStore
	net params.Network
	log log.Logger

	cache *lru.Cache // common.Hash -> *Header, hot lookups for peers mid-sync

	nodes map[common.Hash]*node
	trunk []*node // index i holds the header at height i
}

// Open constructs a Store over db, seeding it with net's genesis header if
// the store is empty, and otherwise replaying every persisted header back
// into the in-memory tree.
func Open(db storage.KeyValueStore, net params.Network) (*Store, error) {
	cache, err := lru.New(4096)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:    db,
		net:   net,
		log:   log.New("module", "chain"),
		cache: cache,
		nodes: make(map[common.Hash]*node),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.trunk) == 0 {
		if err := s.seedGenesis(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) seedGenesis() error {
	gh := s.net.GenesisBlock.Header
	h := FromWire(&gh)
	h.Height = 0
	h.Work = workFromBits(h.Bits)
	n := &node{header: h}
	s.nodes[h.Hash] = n
	s.trunk = []*node{n}
	s.cache.Add(h.Hash, h)
	return s.db.Put(headerKey(h.Hash), encodeHeader(h))
}

// load replays every persisted header into the in-memory tree and
// recomputes the trunk by picking, among all loaded headers, the one with
// the greatest cumulative work and walking its parent chain back to
// genesis. Headers are expected to already satisfy PoW (validated before
// ever being persisted), so load does not re-check it.
func (s *Store) load() error {
	it := s.db.NewIterator(headerPrefix)
	defer it.Release()

	raw := make(map[common.Hash]*Header)
	for it.Next() {
		h, err := decodeHeader(it.Value())
		if err != nil {
			return err
		}
		raw[h.Hash] = h
	}
	if len(raw) == 0 {
		return nil
	}

	// link parents, skipping headers whose parent never loaded (shouldn't
	// happen for a store this module itself wrote, but load() is also the
	// place a truncated/corrupt store would surface that).
	var best *Header
	for _, h := range raw {
		n := &node{header: h}
		s.nodes[h.Hash] = n
		if best == nil || h.Work.Cmp(best.Work) > 0 {
			best = h
		}
	}
	for hash, n := range s.nodes {
		if hash == s.net.GenesisBlock.Header.BlockHash() {
			continue
		}
		if p, ok := s.nodes[n.header.PrevHash]; ok {
			n.parent = p
		}
	}

	tipNode := s.nodes[best.Hash]
	trunk := make([]*node, best.Height+1)
	for n := tipNode; n != nil; n = n.parent {
		trunk[n.header.Height] = n
	}
	s.trunk = trunk
	return nil
}

// Tip returns the current best-chain head.
func (s *Store) Tip() (*Header, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.trunk) == 0 {
		return nil, false
	}
	return s.trunk[len(s.trunk)-1].header, true
}

// GetHeader looks up a header by hash, in any known branch.
func (s *Store) GetHeader(hash common.Hash) (*Header, bool) {
	if h, ok := s.cache.Get(hash); ok {
		return h.(*Header), true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[hash]
	if !ok {
		return nil, false
	}
	s.cache.Add(hash, n.header)
	return n.header, true
}

// HeaderAt returns the trunk header at height, if the trunk is that tall.
func (s *Store) HeaderAt(height int32) (*Header, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if height < 0 || int(height) >= len(s.trunk) {
		return nil, false
	}
	return s.trunk[height].header, true
}

// Txn is a write transaction spanning one or more AddHeader calls,
// matching dispatcher.rs's headers() handler taking chaindb.write() once
// for the whole incoming batch and calling chaindb.batch() (Commit) only
// after the loop, so a mid-batch failure writes no header of the batch to
// disk. The in-memory tree is not rolled back: headers added before the
// failure stay linked, and the trunk keeps any tip move they caused (see
// Discard).
type Txn struct {
	s  *Store
	tx storage.Transaction
}

// Begin opens a write transaction, taking the store's write lock for its
// duration. The caller must Commit or Discard it.
func (s *Store) Begin() *Txn {
	s.mu.Lock()
	return &Txn{s: s, tx: s.db.NewTransaction()}
}

// Commit flushes every header added during the transaction and releases
// the write lock.
func (t *Txn) Commit() error {
	defer t.s.mu.Unlock()
	return t.tx.Commit()
}

// Discard abandons the transaction: headers added during it remain in the
// in-memory tree (matching add_header's behaviour of mutating the tree
// eagerly and only batching the persistence), but nothing was ever
// written to disk, so a restart drops them. Callers that need the
// in-memory mutation rolled back too must rebuild the Store.
func (t *Txn) Discard() {
	defer t.s.mu.Unlock()
	t.tx.Discard()
}

// AddHeader validates and, if valid, links h into the tree, updating the
// trunk if it has strictly greater cumulative work than the current tip.
// This is the Go shape of add_header's match over NoErr / SpvBadProofOfWork
// / other errors described in dispatcher.rs.
func (t *Txn) AddHeader(wh *wire.BlockHeader) (*AddResult, error) {
	s := t.s
	h := FromWire(wh)

	if n, ok := s.nodes[h.Hash]; ok {
		return &AddResult{Stored: n.header}, nil
	}

	parentNode, ok := s.nodes[h.PrevHash]
	if !ok {
		return nil, ErrOrphanHeader
	}
	parent := parentNode.header

	if !checkProofOfWork(s.net, hashToBig(h.Hash), h.Bits) {
		return nil, ErrBadProofOfWork
	}

	want := requiredBits(s.net, parent, h.Time, func(height int32) (time.Time, bool) {
		if n, ok := ancestorAt(parentNode, height); ok {
			return n.header.Time, true
		}
		return time.Time{}, false
	})
	if want != h.Bits {
		return nil, ErrBadRetarget
	}

	h.Height = parent.Height + 1
	h.Work = new(uint256.Int).Add(parent.Work, workFromBits(h.Bits))

	n := &node{header: h, parent: parentNode}
	s.nodes[h.Hash] = n
	s.cache.Add(h.Hash, h)
	if err := t.tx.Put(headerKey(h.Hash), encodeHeader(h)); err != nil {
		return nil, err
	}

	tip := s.trunk[len(s.trunk)-1]
	if h.Work.Cmp(tip.header.Work) <= 0 {
		return &AddResult{Stored: h}, nil
	}

	result := &AddResult{Stored: h, MovedTip: true}
	if parentNode == tip {
		result.Forward = []*Header{h}
		s.trunk = append(s.trunk, n)
		return result, nil
	}

	// Reorg: walk both branches back to their common ancestor.
	forkHeight := commonAncestorHeight(tip, n)
	for i := len(s.trunk) - 1; i > int(forkHeight); i-- {
		result.Unwound = append(result.Unwound, s.trunk[i].header)
	}
	var forward []*node
	for cur := n; cur != nil && cur.header.Height > forkHeight; cur = cur.parent {
		forward = append(forward, cur)
	}
	for i, j := 0, len(forward)-1; i < j; i, j = i+1, j-1 {
		forward[i], forward[j] = forward[j], forward[i]
	}
	for _, fn := range forward {
		result.Forward = append(result.Forward, fn.header)
	}

	trunk := make([]*node, forkHeight+1, h.Height+1)
	copy(trunk, s.trunk[:forkHeight+1])
	trunk = append(trunk, forward...)
	s.trunk = trunk
	return result, nil
}

func ancestorAt(n *node, height int32) (*node, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.header.Height == height {
			return cur, true
		}
		if cur.header.Height < height {
			return nil, false
		}
	}
	return nil, false
}

func commonAncestorHeight(a, b *node) int32 {
	for a.header.Height > b.header.Height {
		a = a.parent
	}
	for b.header.Height > a.header.Height {
		b = b.parent
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a.header.Height
}

func encodeHeader(h *Header) []byte {
	buf := make([]byte, 0, 120)
	buf = append(buf, h.Hash[:]...)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], uint32(h.Time.Unix()))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], h.Bits)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], h.Nonce)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(h.Height))
	buf = append(buf, tmp[:4]...)
	work := h.Work.Bytes32()
	buf = append(buf, work[:]...)
	return buf
}

func decodeHeader(b []byte) (*Header, error) {
	if len(b) < 32*4+4*4+32 {
		return nil, ErrStoreCorrupt
	}
	h := &Header{}
	copy(h.Hash[:], b[0:32])
	copy(h.PrevHash[:], b[32:64])
	copy(h.MerkleRoot[:], b[64:96])
	off := 96
	h.Time = unixTime(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	h.Bits = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	h.Nonce = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	h.Height = int32(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	var work [32]byte
	copy(work[:], b[off:off+32])
	h.Work = new(uint256.Int).SetBytes32(work[:])
	return h, nil
}
