package download

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/probeum/spvnode/peer"
)

func TestDownloaderRequestsQueueFrontFromHintedPeer(t *testing.T) {
	q, err := NewQueue(4)
	require.NoError(t, err)
	q.Enqueue(hashes(7))

	peers := peer.New()
	out := make(chan wire.Message, 1)
	peers.Register(peer.NewHandle(1, out))

	hints := make(chan Hint, 1)
	d := NewDownloader(q, peers, hints)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	hints <- Hint{Peer: 1}

	select {
	case msg := <-out:
		getData, ok := msg.(*wire.MsgGetData)
		require.True(t, ok)
		require.Len(t, getData.InvList, 1)
		require.Equal(t, wire.InvTypeWitnessBlock, getData.InvList[0].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a GetData request")
	}

	cancel()
	<-done
}

func TestDownloaderStopsWhenChannelCloses(t *testing.T) {
	q, err := NewQueue(4)
	require.NoError(t, err)
	peers := peer.New()
	hints := make(chan Hint)
	d := NewDownloader(q, peers, hints)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	close(hints)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after channel close")
	}
}
