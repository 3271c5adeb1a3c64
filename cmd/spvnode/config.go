package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/probeum/spvnode/node"
)

// tomlSettings mirrors the teacher's cmd/gprobe/config.go: TOML keys use
// the same names as the Go struct fields, and an unrecognized field is a
// hard error rather than a silently ignored typo.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// fileConfig is the on-disk shape: every field mirrors node.Config
// directly except Network, BootPeers, Whitelist and SyncTimeoutSec, which
// use string/hex/integer representations a TOML file can hold and are
// translated in toNodeConfig.
type fileConfig struct {
	Network        string
	UserAgent      string
	DataPath       string
	Listen         []string
	BootPeers      []string
	MinConnections int
	NoDNS          bool
	Server         bool
	Whitelist      map[int32]string
	SyncTimeoutSec int
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Network:        "mainnet",
		UserAgent:      "/spvnode:0.1.0/",
		MinConnections: 8,
	}
}

func loadConfig(path string, cfg *fileConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

// toNodeConfig resolves the file-friendly fileConfig into the
// node.Config the Constructor actually takes, parsing the network name,
// boot peer addresses and whitelist hashes.
func toNodeConfig(fc fileConfig) (node.Config, error) {
	network, ok := networkByName(fc.Network)
	if !ok {
		return node.Config{}, fmt.Errorf("unknown network %q", fc.Network)
	}

	bootPeers, err := parseNetAddrs(fc.BootPeers)
	if err != nil {
		return node.Config{}, fmt.Errorf("boot_peers: %w", err)
	}

	whitelist, err := parseWhitelist(fc.Whitelist)
	if err != nil {
		return node.Config{}, fmt.Errorf("whitelist: %w", err)
	}

	cfg := node.Config{
		Network:        network,
		UserAgent:      fc.UserAgent,
		DataPath:       fc.DataPath,
		Listen:         fc.Listen,
		BootPeers:      bootPeers,
		MinConnections: fc.MinConnections,
		NoDNS:          fc.NoDNS,
		Server:         fc.Server,
		Whitelist:      whitelist,
	}
	if fc.SyncTimeoutSec > 0 {
		cfg.SyncTimeout = secondsToDuration(fc.SyncTimeoutSec)
	}
	return cfg, nil
}
