package main

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/log"
)

// ErrTransportUnimplemented is returned by unimplementedTransport: the
// P2P transport (framing, handshake, encryption, socket I/O) is an
// explicit external collaborator per spec §1, specified only by the
// node.Transport interface it must satisfy. This command wires every
// in-scope component against that interface; supplying a working
// implementation of it is a separate, substantial undertaking this
// specification deliberately excludes.
var ErrTransportUnimplemented = errors.New("spvnode: no P2P transport configured")

type unimplementedTransport struct {
	log log.Logger
}

func newUnimplementedTransport() *unimplementedTransport {
	return &unimplementedTransport{log: log.New("module", "transport")}
}

func (t *unimplementedTransport) Dial(ctx context.Context, addr *wire.NetAddress) <-chan error {
	ch := make(chan error, 1)
	ch <- ErrTransportUnimplemented
	return ch
}

func (t *unimplementedTransport) Listen(ctx context.Context, addr string) error {
	t.log.Warn("listen requested but no P2P transport is wired", "addr", addr)
	<-ctx.Done()
	return ctx.Err()
}
