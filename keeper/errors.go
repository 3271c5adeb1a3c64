package keeper

import "errors"

// ErrNoPeers is returned by Run when the connection pool reaches zero and
// neither the address store nor DNS seeds yielded a replacement — spec
// §4.6 step 3: "the SPV node cannot make progress with zero peers".
var ErrNoPeers = errors.New("keeper: no peers reachable from store or dns")
