// Package keeper implements C8 PeerKeeper: the control loop that keeps at
// least min_connections outbound dials in flight, refilling from
// AddressStore then DNS seeds, and treats zero live connections as fatal.
//
// Grounded on original_source/constructor.rs's KeepConnected future (store
// first, then DNS, fatal at zero — spec §4.9's "Future-based PeerKeeper ->
// explicit control loop" REDESIGN FLAG asks for exactly this: an explicit
// loop rather than a hand-rolled custom future). The dial-concurrency
// bound is modeled the way the teacher's sync package bounds concurrent
// peer registration work, generalized here with golang.org/x/sync/semaphore
// since the teacher's own bound was a fixed worker pool size, not a
// reusable primitive.
package keeper

import (
	"context"
	"math/rand"

	"github.com/btcsuite/btcd/wire"
	mapset "github.com/deckarep/golang-set"
	"golang.org/x/sync/semaphore"

	"github.com/probeum/spvnode/addrmgr"
	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/params"
)

// Dial asks the (external, opaque) P2P layer to connect to addr. The
// returned channel receives exactly one value — nil for a graceful close,
// non-nil for a dial or connection failure — when the connection
// terminates; this is the Go shape of the source's "termination future".
type Dial func(ctx context.Context, addr *wire.NetAddress) <-chan error

// SeedLookup is the out-of-scope DNS seed collaborator, spec §1:
// "DNS seed lookup (specified only as seeds(network) -> addresses)".
type SeedLookup func(net params.Network) ([]*wire.NetAddress, error)

// Keeper is C8 PeerKeeper.
type Keeper struct {
	addrs          *addrmgr.Store
	dial           Dial
	seeds          SeedLookup
	minConnections int
	noDNS          bool
	maxParallel    int64
	bootPeers      []*wire.NetAddress
	log            log.Logger
}

// Config bundles Keeper's construction-time parameters (spec §6:
// min_connections, nodns, boot_peers).
type Config struct {
	MinConnections   int
	NoDNS            bool
	MaxParallelDials int64

	// BootPeers are dialed unconditionally before the refill loop starts,
	// matching constructor.rs's keep_connected dialing boot_peers eagerly
	// ahead of entering the KeepConnected future.
	BootPeers []*wire.NetAddress
}

// New wires a Keeper over addrs, using dial to open connections and seeds
// to refresh the DNS cache.
func New(addrs *addrmgr.Store, dial Dial, seeds SeedLookup, cfg Config) *Keeper {
	max := cfg.MaxParallelDials
	if max <= 0 {
		max = 8
	}
	return &Keeper{
		addrs:          addrs,
		dial:           dial,
		seeds:          seeds,
		minConnections: cfg.MinConnections,
		noDNS:          cfg.NoDNS,
		maxParallel:    max,
		bootPeers:      cfg.BootPeers,
		log:            log.New("module", "keeper"),
	}
}

type completion struct {
	id  uint64
	err error
}

// Run executes the loop contract of spec §4.6 until ctx is cancelled or
// the connection pool drops to zero with no replacements available, at
// which point it returns ErrNoPeers (the "fatal log" of step 3 — the
// caller decides whether that is actually process-fatal).
func (k *Keeper) Run(ctx context.Context, net params.Network) error {
	tried := mapset.NewSet()
	var dnsCache []*wire.NetAddress
	connections := make(map[uint64]struct{})
	completions := make(chan completion, 16)
	sem := semaphore.NewWeighted(k.maxParallel)
	var nextID uint64

	startDial := func(addr *wire.NetAddress) {
		id := nextID
		nextID++
		connections[id] = struct{}{}
		if err := sem.Acquire(ctx, 1); err != nil {
			delete(connections, id)
			return
		}
		ch := k.dial(ctx, addr)
		go func() {
			defer sem.Release(1)
			err := <-ch
			select {
			case completions <- completion{id: id, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	refill := func() {
		for len(connections) < k.minConnections {
			exclude := excludeSet(tried)
			rec, ok := k.addrs.GetAPeer(exclude)
			if !ok {
				break
			}
			tried.Add(addrmgr.KeyOf(rec.Addr))
			startDial(rec.Addr)
		}

		if k.noDNS {
			return
		}
		for len(connections) < k.minConnections {
			if len(dnsCache) == 0 {
				refreshed, err := k.seeds(net)
				if err != nil {
					k.log.Warn("dns seed lookup failed", "err", err)
					return
				}
				dnsCache = refreshed
				if len(dnsCache) == 0 {
					return
				}
			}
			idx := rand.Intn(len(dnsCache))
			addr := dnsCache[idx]
			dnsCache = append(dnsCache[:idx], dnsCache[idx+1:]...)
			startDial(addr)
		}
	}

	for _, bp := range k.bootPeers {
		startDial(bp)
	}
	refill()
	for {
		if len(connections) == 0 {
			k.log.Error("no peers reachable from store or dns, cannot make progress")
			return ErrNoPeers
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-completions:
			delete(connections, c.id)
			if c.err != nil {
				k.log.Debug("connection terminated", "id", c.id, "err", c.err)
			}
			refill()
		}
	}
}

func excludeSet(tried mapset.Set) map[addrmgr.Key]struct{} {
	out := make(map[addrmgr.Key]struct{}, tried.Cardinality())
	for v := range tried.Iter() {
		out[v.(addrmgr.Key)] = struct{}{}
	}
	return out
}
