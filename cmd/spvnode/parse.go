package main

import (
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/probeum/spvnode/common"
	"github.com/probeum/spvnode/params"
)

func networkByName(name string) (params.Network, bool) {
	return params.ByName(name)
}

// parseNetAddrs turns "host:port" strings (boot_peers, spec §6) into
// wire.NetAddress values with the service bits this node requires of any
// address it stores or dials (common.ServiceMask, spec §3).
func parseNetAddrs(addrs []string) ([]*wire.NetAddress, error) {
	out := make([]*wire.NetAddress, 0, len(addrs))
	for _, a := range addrs {
		host, portStr, err := net.SplitHostPort(a)
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, err
		}
		ip := net.ParseIP(host)
		if ip == nil {
			resolved, err := net.ResolveIPAddr("ip", host)
			if err != nil {
				return nil, err
			}
			ip = resolved.IP
		}
		out = append(out, &wire.NetAddress{
			Timestamp: time.Now(),
			IP:        ip,
			Port:      uint16(port),
			Services:  wire.ServiceFlag(common.ServiceMask),
		})
	}
	return out, nil
}

// parseWhitelist decodes the TOML-friendly height->hex-hash map into the
// map[int32]common.Hash dispatcher.WithWhitelist expects.
func parseWhitelist(raw map[int32]string) (map[int32]common.Hash, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int32]common.Hash, len(raw))
	for height, hex := range raw {
		h, err := chainhash.NewHashFromStr(hex)
		if err != nil {
			return nil, err
		}
		out[height] = *h
	}
	return out, nil
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
