// Package node implements C9 Constructor: it wires HeaderStore,
// AddressStore, PeerTable, Dispatcher, DownloadQueue/BlockDownloader,
// Broadcaster and PeerKeeper, owns their lifetimes, and starts the
// control loops spec §5 assigns to the cooperative runtime (PeerKeeper)
// and a dedicated worker (BlockDownloader).
//
// Grounded on the teacher's probe/backend.go: a single struct built by
// New (which opens databases and wires sub-objects but starts nothing)
// with separate Start/Stop lifecycle methods.
package node

import (
	"context"
	"sync/atomic"

	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/probeum/spvnode/addrmgr"
	"github.com/probeum/spvnode/broadcast"
	"github.com/probeum/spvnode/chain"
	"github.com/probeum/spvnode/dispatcher"
	"github.com/probeum/spvnode/download"
	"github.com/probeum/spvnode/keeper"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/peer"
	"github.com/probeum/spvnode/storage"
)

// downloadQueueCapacity sizes the DownloadQueue's advisory bloom filter
// (download.NewQueue); generous enough that false positives stay rare
// across a full header sync without growing unbounded.
const downloadQueueCapacity = 1 << 20

// hintBufferSize bounds how many undelivered BlockDownloader hints this
// node will buffer before signalDownloader's non-blocking send starts
// dropping them — a burst of this size can queue before the downloader
// falls behind without Dispatch ever blocking on it.
const hintBufferSize = 64

// Node is C9 Constructor.
type Node struct {
	cfg Config

	headerDB storage.KeyValueStore
	addrDB   storage.KeyValueStore
	blockDB  storage.KeyValueStore // nil unless cfg.Server

	Headers *chain.Store
	Addrs   *addrmgr.Store
	Peers   *peer.Table
	Queue   *download.Queue

	dispatcher  *dispatcher.Dispatcher
	downloader  *download.Downloader
	broadcaster *broadcast.Broadcaster
	keeper      *keeper.Keeper
	sync        *syncTimers

	hints chan download.Hint

	// advertisedHeight is updated after every Height(h) ProcessResult and
	// read by the external P2P layer's version-handshake advertiser
	// (SPEC_FULL.md SUPPLEMENTED FEATURES #3).
	advertisedHeight int64

	transport Transport

	log log.Logger
}

// New opens the on-disk stores under cfg.DataPath and wires every
// component. It starts nothing; call Start to run the control loops.
func New(cfg Config, transport Transport, seeds keeper.SeedLookup) (*Node, error) {
	headerDB, err := openStore(cfg.DataPath, "headers")
	if err != nil {
		return nil, err
	}
	addrDB, err := openStore(cfg.DataPath, "addrs")
	if err != nil {
		return nil, err
	}
	var blockDB storage.KeyValueStore
	if cfg.Server {
		if blockDB, err = openStore(cfg.DataPath, "blocks"); err != nil {
			return nil, err
		}
	}

	headers, err := chain.Open(headerDB, cfg.Network)
	if err != nil {
		return nil, err
	}
	addrs, err := addrmgr.Open(addrDB)
	if err != nil {
		return nil, err
	}
	peers := peer.New()

	queue, err := download.NewQueue(downloadQueueCapacity)
	if err != nil {
		return nil, err
	}

	nodeLog := log.New("module", "node")
	hints := make(chan download.Hint, hintBufferSize)

	n := &Node{
		cfg:       cfg,
		headerDB:  headerDB,
		addrDB:    addrDB,
		blockDB:   blockDB,
		Headers:   headers,
		Addrs:     addrs,
		Peers:     peers,
		Queue:     queue,
		hints:     hints,
		transport: transport,
		log:       nodeLog,
	}

	opts := []dispatcher.Option{dispatcher.WithOnGetHeaders(n.armSyncTimer)}
	if len(cfg.Whitelist) > 0 {
		opts = append(opts, dispatcher.WithWhitelist(cfg.Whitelist))
	}
	sink := newBlockSink(blockDB, log.New("module", "blocksink"))
	n.dispatcher = dispatcher.New(headers, addrs, peers, queue, hints, sink, opts...)

	n.sync = newSyncTimers(cfg.syncTimeout(), n.dropUnresponsivePeer)
	n.downloader = download.NewDownloader(queue, peers, hints)
	n.broadcaster = broadcast.New(peers)
	n.keeper = keeper.New(addrs, n.dial, seeds, keeper.Config{
		MinConnections: cfg.MinConnections,
		NoDNS:          cfg.NoDNS,
		BootPeers:      cfg.BootPeers,
	})

	return n, nil
}

func openStore(dataPath, name string) (*storage.LevelDB, error) {
	if dataPath == "" {
		return storage.Open("")
	}
	return storage.Open(dataPath + "/" + name)
}

// Connected must be called by the Transport once a peer's handshake
// completes and its Handle is registered in n.Peers; it issues the
// Connected-event GetHeaders (spec §4.4).
func (n *Node) Connected(pid peer.Id) dispatcher.Result {
	return n.dispatcher.Connected(pid)
}

// Dispatch must be called by the Transport for every inbound message
// from pid, in arrival order (spec §5, Ordering guarantees).
func (n *Node) Dispatch(pid peer.Id, msg wire.Message) dispatcher.Result {
	if _, ok := msg.(*wire.MsgHeaders); ok {
		n.sync.Disarm(pid)
	}
	res := n.dispatcher.Dispatch(pid, msg)
	if res.Kind == dispatcher.KindHeight {
		atomic.StoreInt64(&n.advertisedHeight, int64(res.Height))
	}
	return res
}

// AdvertisedHeight returns the height the (external) P2P layer should
// advertise in future version handshakes.
func (n *Node) AdvertisedHeight() int32 {
	return int32(atomic.LoadInt64(&n.advertisedHeight))
}

// Broadcast fans tx out to every connected peer (C4).
func (n *Node) Broadcast(tx *wire.MsgTx) { n.broadcaster.Broadcast(tx) }

func (n *Node) armSyncTimer(pid peer.Id) { n.sync.Arm(pid) }

func (n *Node) dropUnresponsivePeer(pid peer.Id) {
	n.log.Warn("getheaders reply timed out, dropping peer", "peer", pid)
	n.Peers.Unregister(pid)
}

func (n *Node) dial(ctx context.Context, addr *wire.NetAddress) <-chan error {
	return n.transport.Dial(ctx, addr)
}

// Start runs the PeerKeeper loop, the BlockDownloader worker and any
// configured listeners until ctx is cancelled or one of them returns a
// fatal error (errgroup cancels the rest on the first failure).
func (n *Node) Start(ctx context.Context) error {
	if len(n.cfg.Listen) > 0 {
		n.mapPorts(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.downloader.Run(gctx) })

	for _, addr := range n.cfg.Listen {
		addr := addr
		g.Go(func() error { return n.transport.Listen(gctx, addr) })
	}

	// BootPeers are dialed eagerly inside keeper.Run itself, ahead of its
	// first refill (see keeper.Config.BootPeers); Node does not also dial
	// them here.
	g.Go(func() error { return n.keeper.Run(gctx, n.cfg.Network) })

	return g.Wait()
}

// Stop tears the Constructor down: outstanding sync timers are
// cancelled and every opened store is closed. Cancelling the context
// passed to Start is what actually ends the control loops (spec §5,
// "Shutdown is modeled as dropping the Constructor"); Stop only releases
// resources Start itself doesn't own a cancellation path for.
func (n *Node) Stop() error {
	n.sync.StopAll()
	for _, db := range []storage.KeyValueStore{n.headerDB, n.addrDB, n.blockDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			return err
		}
	}
	return nil
}
