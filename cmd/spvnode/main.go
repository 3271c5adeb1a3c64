// Command spvnode runs the SPV message-processing and peer-orchestration
// engine described by this module's specification: it synchronizes a
// block-header chain, optionally downloads full blocks on demand, and
// maintains a pool of outbound peer connections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/spvnode/log"
	"github.com/probeum/spvnode/node"
)

var (
	configFileFlag = cli.StringFlag{Name: "config", Usage: "TOML configuration file"}
	networkFlag    = cli.StringFlag{Name: "network", Usage: "mainnet, testnet3 or regtest", Value: "mainnet"}
	dataDirFlag    = cli.StringFlag{Name: "datadir", Usage: "directory for header/address/block stores"}
	listenFlag     = cli.StringSliceFlag{Name: "listen", Usage: "address to accept inbound connections on"}
	bootPeerFlag   = cli.StringSliceFlag{Name: "bootpeer", Usage: "address to dial unconditionally at startup"}
	minPeersFlag   = cli.IntFlag{Name: "minpeers", Usage: "minimum outbound peer connections to maintain", Value: 8}
	noDNSFlag      = cli.BoolFlag{Name: "nodns", Usage: "disable DNS seed lookups"}
	serverFlag     = cli.BoolFlag{Name: "server", Usage: "persist full blocks instead of keeping only the most recent in memory"}
)

func main() {
	app := cli.NewApp()
	app.Name = "spvnode"
	app.Usage = "Bitcoin SPV message-processing and peer-orchestration engine"
	app.Flags = []cli.Flag{
		configFileFlag, networkFlag, dataDirFlag,
		listenFlag, bootPeerFlag, minPeersFlag, noDNSFlag, serverFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	fc := defaultFileConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &fc); err != nil {
			return err
		}
	}
	applyFlags(ctx, &fc)

	cfg, err := toNodeConfig(fc)
	if err != nil {
		return err
	}

	n, err := node.New(cfg, newUnimplementedTransport(), lookupSeeds)
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	startErr := n.Start(runCtx)
	if stopErr := n.Stop(); stopErr != nil {
		log.Error("error closing stores", "err", stopErr)
	}
	if startErr != nil && startErr != context.Canceled {
		return startErr
	}
	return nil
}

// applyFlags overlays any explicitly-set CLI flags onto fc, which was
// already populated by defaults and (optionally) a TOML file — flags
// win, matching the teacher's makeConfigNode layering (defaults, then
// file, then flags).
func applyFlags(ctx *cli.Context, fc *fileConfig) {
	if ctx.IsSet(networkFlag.Name) {
		fc.Network = ctx.String(networkFlag.Name)
	}
	if ctx.IsSet(dataDirFlag.Name) {
		fc.DataPath = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(listenFlag.Name) {
		fc.Listen = ctx.StringSlice(listenFlag.Name)
	}
	if ctx.IsSet(bootPeerFlag.Name) {
		fc.BootPeers = ctx.StringSlice(bootPeerFlag.Name)
	}
	if ctx.IsSet(minPeersFlag.Name) {
		fc.MinConnections = ctx.Int(minPeersFlag.Name)
	}
	if ctx.IsSet(noDNSFlag.Name) {
		fc.NoDNS = ctx.Bool(noDNSFlag.Name)
	}
	if ctx.IsSet(serverFlag.Name) {
		fc.Server = ctx.Bool(serverFlag.Name)
	}
}
