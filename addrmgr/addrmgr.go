// Package addrmgr implements C2 AddressStore: a transactional book of
// routable, service-qualified peer addresses, grounded on
// original_source/constructor.rs's AddressStore usage (store_peer,
// get_a_peer) and on the teacher's probedb.Database transaction shape.
package addrmgr

import (
	"encoding/binary"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/storage"
)

var addrPrefix = []byte("a")

// Record is one stored peer address (spec §3, Address record).
type Record struct {
	Addr     *wire.NetAddress
	LastSeen time.Time
	BanScore uint32
}

func (r *Record) key() []byte {
	ip := r.Addr.IP.To16()
	buf := make([]byte, 0, len(addrPrefix)+18)
	buf = append(buf, addrPrefix...)
	buf = append(buf, ip...)
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], r.Addr.Port)
	buf = append(buf, port[:]...)
	return buf
}

// Key is the addressable identity of a Record, used by callers (e.g.
// keeper's "tried" set) that need a comparable value instead of a pointer.
type Key string

// KeyOf returns the comparable identity (ip:port) of addr.
func KeyOf(addr *wire.NetAddress) Key {
	return Key(net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(addr.Port))))
}

// Store is C2 AddressStore. It is an append-mostly table, so the teacher's
// reads-heavy-vs-write-heavy lock split (spec §3 Concurrency) collapses to
// a single mutex here rather than an RWMutex.
type Store struct {
	mu  sync.Mutex
	db  storage.KeyValueStore
	log log.Logger

	// records mirrors the persisted table for get_a_peer's linear scan;
	// rebuilt from db at Open so a restart doesn't need to keep every
	// record pinned only in memory.
	records map[Key]*Record
}

// Open loads every previously stored address record from db.
func Open(db storage.KeyValueStore) (*Store, error) {
	s := &Store{
		db:      db,
		log:     log.New("module", "addrmgr"),
		records: make(map[Key]*Record),
	}
	it := db.NewIterator(addrPrefix)
	defer it.Release()
	for it.Next() {
		r, err := decodeRecord(it.Value())
		if err != nil {
			return nil, err
		}
		s.records[KeyOf(r.Addr)] = r
	}
	return s, nil
}

// IsRoutable reports whether addr is suitable to store: not an
// unspecified, loopback, link-local, multicast, or Tor (.onion) address.
// wire.NetAddress carries a plain net.IP, so Tor pseudo-addresses are
// recognised by btcd's own OnionCatTor prefix convention.
func IsRoutable(ip net.IP) bool {
	if ip == nil || ip.IsUnspecified() || ip.IsLoopback() || ip.IsMulticast() {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		return !ip4.IsLinkLocalUnicast()
	}
	if ip.IsLinkLocalUnicast() {
		return false
	}
	return !isOnionCatTor(ip)
}

// onionCatTorPrefix is the OnionCat-assigned /48 (fd87:d87e:eb43::/48)
// btcd's own address manager uses to recognise a .onion address that has
// been mapped into an IPv6 literal.
var onionCatTorPrefix = []byte{0xfd, 0x87, 0xd8, 0x7e, 0xeb, 0x43}

func isOnionCatTor(ip net.IP) bool {
	ip16 := ip.To16()
	if ip16 == nil {
		return false
	}
	for i, b := range onionCatTorPrefix {
		if ip16[i] != b {
			return false
		}
	}
	return true
}

// HasRequiredServices reports whether services satisfies the acceptance
// mask (NODE_NETWORK | NODE_WITNESS), spec §6 Constants.
func HasRequiredServices(services wire.ServiceFlag) bool {
	return uint64(services)&common.ServiceMask == common.ServiceMask
}

// IsFresh reports whether a timestamp is within the freshness window of
// now.
func IsFresh(ts, now time.Time) bool {
	return now.Sub(ts) < common.AddrFreshnessWindow
}

// Txn is a write transaction over the store, matching the
// transaction()/commit() contract spec §3 requires of both stores.
type Txn struct {
	s   *Store
	tx  storage.Transaction
	put []*Record
}

// Begin opens a write transaction, taking the store's lock.
func (s *Store) Begin() *Txn {
	s.mu.Lock()
	return &Txn{s: s, tx: s.db.NewTransaction()}
}

// StorePeer upserts addr by socket address, applying the routability and
// service-bit filter from spec §3. A non-qualifying address is silently
// skipped (not an error), mirroring dispatcher.rs's addr() handler, which
// filters before ever calling store_peer.
func (t *Txn) StorePeer(addr *wire.NetAddress, lastSeen time.Time, banScore uint32) bool {
	if !IsRoutable(addr.IP) || !HasRequiredServices(addr.Services) {
		return false
	}
	r := &Record{Addr: addr, LastSeen: lastSeen, BanScore: banScore}
	if err := t.tx.Put(r.key(), encodeRecord(r)); err != nil {
		return false
	}
	t.put = append(t.put, r)
	return true
}

// Commit flushes every StorePeer call made during the transaction into
// both the on-disk table and the in-memory mirror, then releases the lock.
func (t *Txn) Commit() error {
	defer t.s.mu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return err
	}
	for _, r := range t.put {
		t.s.records[KeyOf(r.Addr)] = r
	}
	return nil
}

// Discard abandons the transaction: no record touched during it is
// retained, on disk or in memory.
func (t *Txn) Discard() {
	defer t.s.mu.Unlock()
	t.tx.Discard()
}

// GetAPeer returns any stored record whose key is not in exclude. Order
// of iteration over a Go map is randomized per run, which already
// satisfies spec §4.2's liveness requirement (every record eventually
// returned across repeated calls with a growing exclude set) without
// needing to track a cursor.
func (s *Store) GetAPeer(exclude map[Key]struct{}) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.records {
		if _, skip := exclude[k]; skip {
			continue
		}
		return r, true
	}
	return nil, false
}

// Len reports how many addresses are currently stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func encodeRecord(r *Record) []byte {
	ip := r.Addr.IP.To16()
	buf := make([]byte, 0, 16+2+8+8+4)
	buf = append(buf, ip...)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], r.Addr.Port)
	buf = append(buf, u16[:]...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(r.Addr.Services))
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(r.LastSeen.Unix()))
	buf = append(buf, u64[:]...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], r.BanScore)
	buf = append(buf, u32[:]...)
	return buf
}

func decodeRecord(b []byte) (*Record, error) {
	if len(b) < 16+2+8+8+4 {
		return nil, storage.ErrNotFound
	}
	ip := make(net.IP, 16)
	copy(ip, b[0:16])
	port := binary.BigEndian.Uint16(b[16:18])
	services := wire.ServiceFlag(binary.LittleEndian.Uint64(b[18:26]))
	lastSeen := time.Unix(int64(binary.LittleEndian.Uint64(b[26:34])), 0).UTC()
	banScore := binary.LittleEndian.Uint32(b[34:38])
	return &Record{
		Addr: &wire.NetAddress{
			IP:        ip,
			Port:      port,
			Services:  services,
			Timestamp: lastSeen,
		},
		LastSeen: lastSeen,
		BanScore: banScore,
	}, nil
}
