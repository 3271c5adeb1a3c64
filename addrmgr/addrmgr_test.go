package addrmgr

import (
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/storage"
)

func newAddr(ip string, services wire.ServiceFlag) *wire.NetAddress {
	return &wire.NetAddress{IP: net.ParseIP(ip), Port: 8333, Services: services}
}

func TestStorePeerFiltersAndCommits(t *testing.T) {
	db, err := storage.Open("")
	require.NoError(t, err)
	s, err := Open(db)
	require.NoError(t, err)

	now := time.Now()
	routable := newAddr("8.8.8.8", 0x9)
	notEnoughServices := newAddr("8.8.4.4", 0x1)
	onion := &wire.NetAddress{
		IP:       net.IP{0xfd, 0x87, 0xd8, 0x7e, 0xeb, 0x43, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		Port:     8333,
		Services: 0x9,
	}

	txn := s.Begin()
	require.True(t, txn.StorePeer(routable, now, 0))
	require.False(t, txn.StorePeer(notEnoughServices, now, 0))
	require.False(t, txn.StorePeer(onion, now, 0))
	require.NoError(t, txn.Commit())

	require.Equal(t, 1, s.Len())
	r, ok := s.GetAPeer(nil)
	require.True(t, ok)
	require.Equal(t, routable.IP.String(), r.Addr.IP.String())
}

func TestGetAPeerRespectsExcludeSet(t *testing.T) {
	db, err := storage.Open("")
	require.NoError(t, err)
	s, err := Open(db)
	require.NoError(t, err)

	a := newAddr("1.2.3.4", 0x9)
	b := newAddr("5.6.7.8", 0x9)

	txn := s.Begin()
	require.True(t, txn.StorePeer(a, time.Now(), 0))
	require.True(t, txn.StorePeer(b, time.Now(), 0))
	require.NoError(t, txn.Commit())

	exclude := map[Key]struct{}{KeyOf(a): {}}
	r, ok := s.GetAPeer(exclude)
	require.True(t, ok)
	require.Equal(t, b.IP.String(), r.Addr.IP.String())

	exclude[KeyOf(b)] = struct{}{}
	_, ok = s.GetAPeer(exclude)
	require.False(t, ok)
}

func TestDiscardedTransactionDoesNotPersist(t *testing.T) {
	db, err := storage.Open("")
	require.NoError(t, err)
	s, err := Open(db)
	require.NoError(t, err)

	txn := s.Begin()
	require.True(t, txn.StorePeer(newAddr("1.1.1.1", 0x9), time.Now(), 0))
	txn.Discard()

	require.Equal(t, 0, s.Len())
}
