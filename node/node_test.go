package node

import (
	"context"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/params"
	"github.com/probeum/spvnode/peer"
)

// expandBitsForTest and hashToBigForTest are standalone copies of
// chain's unexported compact-bits expansion (chain/pow.go), needed only
// to grind a nonce that satisfies regtest's target.
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

func mineChild(t *testing.T, n *Node) *wire.BlockHeader {
	t.Helper()
	tip, ok := n.Headers.Tip()
	require.True(t, ok)
	h := wire.NewBlockHeader(0, &tip.Hash, &tip.Hash, tip.Bits, 0)
	h.Timestamp = tip.Time.Add(10 * time.Minute)
	mineHeader(t, h)
	return h
}

func headersMsg(h *wire.BlockHeader) *wire.MsgHeaders {
	msg := wire.NewMsgHeaders()
	msg.AddBlockHeader(h)
	return msg
}

// fakeTransport never actually connects anything; every dial's
// termination channel fires once ctx is cancelled, and Listen just
// blocks until ctx is cancelled, matching how a real transport's
// lifetime is bounded without needing a socket in this test.
type fakeTransport struct {
	dials chan *wire.NetAddress
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dials: make(chan *wire.NetAddress, 16)}
}

func (f *fakeTransport) Dial(ctx context.Context, addr *wire.NetAddress) <-chan error {
	select {
	case f.dials <- addr:
	default:
	}
	ch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		ch <- ctx.Err()
	}()
	return ch
}

func (f *fakeTransport) Listen(ctx context.Context, addr string) error {
	<-ctx.Done()
	return ctx.Err()
}

func noSeeds(params.Network) ([]*wire.NetAddress, error) { return nil, nil }

func newTestNode(t *testing.T, cfg Config) (*Node, *fakeTransport) {
	t.Helper()
	if cfg.Network.Params == nil {
		cfg.Network = params.Regtest
	}
	if cfg.MinConnections == 0 {
		cfg.MinConnections = 1
	}
	cfg.BootPeers = []*wire.NetAddress{{IP: net.ParseIP("1.1.1.1"), Port: 8333, Services: 0x9}}
	tr := newFakeTransport()
	n, err := New(cfg, tr, noSeeds)
	require.NoError(t, err)
	return n, tr
}

func TestNewWiresAllComponents(t *testing.T) {
	n, _ := newTestNode(t, Config{})
	defer n.Stop()

	tip, ok := n.Headers.Tip()
	require.True(t, ok)
	require.Equal(t, int32(0), tip.Height)
	require.Equal(t, 0, n.Peers.Len())
}

func TestStartDialsBootPeersAndStopsOnCancel(t *testing.T) {
	n, tr := newTestNode(t, Config{})
	defer n.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	select {
	case addr := <-tr.dials:
		require.Equal(t, "1.1.1.1", addr.IP.String())
	case <-time.After(time.Second):
		t.Fatal("boot peer was never dialed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestDispatchRecordsAdvertisedHeightOnHeightResult(t *testing.T) {
	n, _ := newTestNode(t, Config{})
	defer n.Stop()

	require.Equal(t, int32(0), n.AdvertisedHeight())

	handle := peer.NewHandle(1, make(chan wire.Message, 4))
	n.Peers.Register(handle)

	h := mineChild(t, n)
	res := n.Dispatch(1, headersMsg(h))
	require.Equal(t, int32(1), res.Height)
	require.Equal(t, int32(1), n.AdvertisedHeight())
}

func TestDropUnresponsivePeerUnregistersHandle(t *testing.T) {
	n, _ := newTestNode(t, Config{SyncTimeout: 10 * time.Millisecond})
	defer n.Stop()

	handle := peer.NewHandle(7, make(chan wire.Message, 4))
	n.Peers.Register(handle)

	n.armSyncTimer(7)
	require.Eventually(t, func() bool {
		_, ok := n.Peers.Get(7)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestHeadersReplyDisarmsSyncTimer(t *testing.T) {
	n, _ := newTestNode(t, Config{SyncTimeout: 15 * time.Millisecond})
	defer n.Stop()

	handle := peer.NewHandle(3, make(chan wire.Message, 4))
	n.Peers.Register(handle)

	n.armSyncTimer(3)
	n.Dispatch(3, wire.NewMsgHeaders())

	time.Sleep(50 * time.Millisecond)
	_, ok := n.Peers.Get(3)
	require.True(t, ok, "peer should not be dropped once it replied before the timeout")
}
