package chain

import "errors"

// Sentinel errors returned by Store.AddHeader, matching the
// SpvBadProofOfWork / "no tip" / orphan cases original_source/dispatcher.rs
// distinguishes in its add_header match arms.
var (
	// ErrBadProofOfWork is returned when a header's hash does not satisfy
	// the target its bits field encodes, or its bits exceed the network's
	// PowLimit. The dispatcher maps this, and only this, to Ban(100).
	ErrBadProofOfWork = errors.New("chain: header fails proof-of-work check")

	// ErrBadRetarget is returned when bits does not match the value the
	// retarget rule for this height computes.
	ErrBadRetarget = errors.New("chain: header bits do not match required retarget")

	// ErrOrphanHeader is returned when a header's PrevHash is not a known
	// header in the store.
	ErrOrphanHeader = errors.New("chain: header's parent is unknown")

	// ErrNoTip is returned by any operation that requires an existing tip
	// (e.g. header_locators) on a store that has not been seeded with a
	// genesis header.
	ErrNoTip = errors.New("chain: store has no tip")

	// ErrStoreCorrupt is returned when a persisted header record cannot be
	// decoded back to its on-disk length.
	ErrStoreCorrupt = errors.New("chain: corrupt header record")
)
