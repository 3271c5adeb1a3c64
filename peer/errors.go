package peer

import "errors"

// ErrPeerGone is returned by Handle.Send when the underlying outbound
// channel has already been closed by its owning connection goroutine.
var ErrPeerGone = errors.New("peer: send to a removed peer")
