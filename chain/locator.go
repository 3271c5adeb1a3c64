package chain

import "github.com/probeum/spvnode/common"

// Locator builds a block locator the way get_headers() in
// original_source/dispatcher.rs does: starting at the tip and stepping
// back one header at a time for the first ten entries, then by a doubling
// stride (2, 4, 8, …) so the list stays short
// (O(log height)) while still letting a peer find the common ancestor no
// matter how far the two chains have diverged, ending at genesis.
func (s *Store) Locator() ([]common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.trunk) == 0 {
		return nil, ErrNoTip
	}

	var locator []common.Hash
	step := int32(1)
	for i := int32(len(s.trunk) - 1); i >= 0; i -= step {
		locator = append(locator, s.trunk[i].header.Hash)
		if len(locator) >= 10 {
			step *= 2
		}
		if i-step < 0 && i != 0 {
			// make sure genesis is always included even if the stride
			// would otherwise jump past it
			locator = append(locator, s.trunk[0].header.Hash)
			break
		}
	}
	return locator, nil
}
