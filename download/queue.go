// Package download implements C6 DownloadQueue and C7 BlockDownloader:
// the process-wide FIFO of block hashes awaiting download, and the worker
// that drains peer hints to pull them.
package download

import (
	"encoding/binary"
	"sync"

	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/probeum/spvnode/common"
)

// bloomKey adapts a common.Hash to bloomfilter.Hashable; a block hash is
// already uniformly distributed output of double-SHA256, so its low 8
// bytes are a fine Sum64 without a second hash pass.
type bloomKey common.Hash

func (k bloomKey) Sum64() uint64 { return binary.LittleEndian.Uint64(k[:8]) }

// Queue is C6 DownloadQueue: process-wide, persists across peer churn
// (spec §3, Lifecycles).
type Queue struct {
	mu     sync.Mutex
	hashes []common.Hash
	member map[common.Hash]struct{}

	// bloom is an advisory pre-check only: a negative answer is certain (no
	// false negatives), a positive answer must still be confirmed against
	// member. It lets Enqueue skip the map probe for a hash the filter has
	// never seen; every hash of an already-queued prefix is still probed.
	bloom *bloomfilter.Filter
}

// NewQueue returns an empty queue sized for roughly n in-flight hashes.
func NewQueue(n uint64) (*Queue, error) {
	if n == 0 {
		n = 1024
	}
	f, err := bloomfilter.New(n*20, 4)
	if err != nil {
		return nil, err
	}
	return &Queue{member: make(map[common.Hash]struct{}), bloom: f}, nil
}

func (q *Queue) probablyMember(h common.Hash) bool {
	if !q.bloom.Contains(bloomKey(h)) {
		return false
	}
	_, ok := q.member[h]
	return ok
}

// Enqueue appends the suffix of blocks starting at the first hash not
// already queued, per spec §4.5: headers arrive batched and mostly
// already-queued, so skipping the common prefix avoids O(n^2) membership
// churn while preserving the order of newly seen hashes.
func (q *Queue) Enqueue(blocks []common.Hash) {
	if len(blocks) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	first := 0
	for ; first < len(blocks); first++ {
		if !q.probablyMember(blocks[first]) {
			break
		}
	}
	for _, h := range blocks[first:] {
		q.hashes = append(q.hashes, h)
		q.member[h] = struct{}{}
		q.bloom.Add(bloomKey(h))
	}
}

// Front returns the hash at the head of the queue, if any.
func (q *Queue) Front() (common.Hash, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hashes) == 0 {
		return common.Hash{}, false
	}
	return q.hashes[0], true
}

// PopIf removes the front entry only if it equals h, matching spec
// §4.4.2: an unsolicited or out-of-order block leaves the queue unchanged.
func (q *Queue) PopIf(h common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hashes) == 0 || q.hashes[0] != h {
		return false
	}
	delete(q.member, q.hashes[0])
	q.hashes = q.hashes[1:]
	return true
}

// Len reports how many hashes are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hashes)
}

