package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/addrmgr"
	"github.com/probeum/spvnode/chain"
	"github.com/probeum/spvnode/download"
	"github.com/probeum/spvnode/params"
	"github.com/probeum/spvnode/peer"
	"github.com/probeum/spvnode/storage"
)

var chainHashZero chainhash.Hash

func mustIP(s string) net.IP { return net.ParseIP(s) }

type fakeSink struct {
	stored       []*wire.MsgBlock
	disconnected []*chain.Header
}

func (f *fakeSink) StoreBlock(b *wire.MsgBlock) error {
	f.stored = append(f.stored, b)
	return nil
}

func (f *fakeSink) BlockDisconnected(h *chain.Header) {
	f.disconnected = append(f.disconnected, h)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *chain.Store, *peer.Table, chan wire.Message, *fakeSink) {
	t.Helper()
	headerDB, err := storage.Open("")
	require.NoError(t, err)
	headers, err := chain.Open(headerDB, params.Regtest)
	require.NoError(t, err)

	addrDB, err := storage.Open("")
	require.NoError(t, err)
	addrs, err := addrmgr.Open(addrDB)
	require.NoError(t, err)

	peers := peer.New()
	out := make(chan wire.Message, 8)
	peers.Register(peer.NewHandle(1, out))

	queue, err := download.NewQueue(16)
	require.NoError(t, err)
	hints := make(chan download.Hint, 4)
	sink := &fakeSink{}

	d := New(headers, addrs, peers, queue, hints, sink)
	return d, headers, peers, out, sink
}

func TestDispatchPingRepliesWithPong(t *testing.T) {
	d, _, _, out, _ := newTestDispatcher(t)
	res := d.Dispatch(1, wire.NewMsgPing(42))
	require.Equal(t, Ack(), res)

	msg := <-out
	pong, ok := msg.(*wire.MsgPong)
	require.True(t, ok)
	require.EqualValues(t, 42, pong.Nonce)
}

func TestDispatchUnknownMessageBans(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	res := d.Dispatch(1, &wire.MsgVerAck{})
	require.Equal(t, BanUnknownMessage, res)
}

func TestDispatchInvWithNonBlockEntryBans(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &chainHashZero))
	res := d.Dispatch(1, inv)
	require.Equal(t, BanUnwantedInv, res)
}

func TestDispatchAddrFiltersUnroutableAndStale(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	now := time.Now()

	addr := wire.NewMsgAddr()
	addr.AddAddress(&wire.NetAddress{IP: mustIP("8.8.8.8"), Port: 8333, Services: 0x9, Timestamp: now})
	addr.AddAddress(&wire.NetAddress{IP: mustIP("8.8.4.4"), Port: 8333, Services: 0x9, Timestamp: now.Add(-2 * time.Hour)})
	addr.AddAddress(&wire.NetAddress{IP: mustIP("127.0.0.1"), Port: 8333, Services: 0x9, Timestamp: now})

	res := d.Dispatch(1, addr)
	require.Equal(t, Ack(), res)
	require.Equal(t, 1, d.addrs.Len())
}

func TestConnectedSendsGetHeaders(t *testing.T) {
	d, _, _, out, _ := newTestDispatcher(t)
	res := d.Connected(1)
	require.Equal(t, Ack(), res)

	msg := <-out
	_, ok := msg.(*wire.MsgGetHeaders)
	require.True(t, ok)
}
