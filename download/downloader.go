package download

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/peer"
)

// Hint is one peer-hint message the downloader's channel carries: "this
// peer is worth asking for the current queue front" (spec §4.8). The
// producer is the dispatcher's Headers handling, after it enqueues newly
// connected headers.
type Hint struct {
	Peer peer.Id
}

// Downloader is C7 BlockDownloader: a dedicated-thread worker (spec §5)
// that drains a single-producer-single-consumer channel of Hints and
// issues GetData(WitnessBlock) for the queue front, paced by a single rate
// limiter shared across all peers; there is no separate per-peer limit.
type Downloader struct {
	queue   *Queue
	peers   *peer.Table
	hints   <-chan Hint
	limiter *rate.Limiter
	log     log.Logger
}

// NewDownloader wires a Downloader over queue and peers, consuming hints.
func NewDownloader(queue *Queue, peers *peer.Table, hints <-chan Hint) *Downloader {
	return &Downloader{
		queue:   queue,
		peers:   peers,
		hints:   hints,
		limiter: rate.NewLimiter(rate.Limit(32), 32),
		log:     log.New("module", "download"),
	}
}

// Run drains hints until the channel closes or ctx is cancelled, the two
// ways spec §4.8 says the worker stops.
func (d *Downloader) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case hint, ok := <-d.hints:
			if !ok {
				return nil
			}
			d.handle(ctx, hint)
		}
	}
}

func (d *Downloader) handle(ctx context.Context, hint Hint) {
	hash, ok := d.queue.Front()
	if !ok {
		return
	}
	handle, ok := d.peers.Get(hint.Peer)
	if !ok {
		return
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	reqID := uuid.New()
	getData := wire.NewMsgGetData()
	if err := getData.AddInvVect(wire.NewInvVect(wire.InvTypeWitnessBlock, &hash)); err != nil {
		d.log.Warn("could not build getdata", "request", reqID, "err", err)
		return
	}
	if err := handle.Send(getData); err != nil {
		d.log.Debug("getdata send failed", "request", reqID, "peer", hint.Peer, "err", err)
	}
}
