package node

import (
	"context"
	"net"
	"strconv"

	"github.com/huin/goupnp/dcps/internetgateway2"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// natLeaseSeconds is the requested port-mapping lifetime; both protocols
// expect the caller to renew before it expires, which this best-effort
// helper does not do — a longer-lived node should re-run mapPorts
// periodically, left as a caller responsibility.
const natLeaseSeconds = 3600

// mapPorts best-effort maps every configured listen port via NAT-PMP then
// UPnP IGD, matching the teacher's declared-but-unwired huin/goupnp and
// jackpal/go-nat-pmp dependencies (see DESIGN.md). Failures are logged and
// never fatal: the transport's listener still binds locally regardless of
// whether the mapping succeeds.
func (n *Node) mapPorts(_ context.Context) {
	for _, listen := range n.cfg.Listen {
		_, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			n.log.Warn("cannot parse listen address for NAT mapping", "addr", listen, "err", err)
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		if n.mapPortNATPMP(port) {
			continue
		}
		n.mapPortUPnP(port)
	}
}

func (n *Node) mapPortNATPMP(port int) bool {
	gw := defaultGateway()
	if gw == nil {
		return false
	}
	client := natpmp.NewClient(gw)
	if _, err := client.AddPortMapping("tcp", port, port, natLeaseSeconds); err != nil {
		n.log.Debug("nat-pmp mapping failed", "port", port, "err", err)
		return false
	}
	n.log.Info("mapped listen port via nat-pmp", "port", port)
	return true
}

func (n *Node) mapPortUPnP(port int) {
	clients, _, err := internetgateway2.NewWANIPConnection1Clients()
	if err != nil || len(clients) == 0 {
		n.log.Debug("no upnp internet gateway found", "err", err)
		return
	}
	local := localIP()
	if local == "" {
		return
	}
	p := uint16(port)
	if err := clients[0].AddPortMapping("", p, "TCP", p, local, true, "spvnode", natLeaseSeconds); err != nil {
		n.log.Debug("upnp mapping failed", "port", port, "err", err)
		return
	}
	n.log.Info("mapped listen port via upnp", "port", port)
}

// defaultGateway guesses the LAN gateway as the .1 address on the same
// /24 as the local outbound interface. This module carries no
// gateway-discovery dependency (go-nat-pmp needs the gateway IP handed
// to it), so this heuristic stands in for one; it is wrong on networks
// that don't put the gateway at .1, in which case mapPortNATPMP simply
// fails closed and mapPortUPnP (which self-discovers) is tried instead.
func defaultGateway() net.IP {
	local := localIP()
	if local == "" {
		return nil
	}
	ip := net.ParseIP(local).To4()
	if ip == nil {
		return nil
	}
	return net.IPv4(ip[0], ip[1], ip[2], 1)
}

func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
