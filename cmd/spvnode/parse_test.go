package main

import (
	"testing"

	"github.com/probeum/spvnode/common"
)

func TestParseNetAddrsResolvesIPLiterals(t *testing.T) {
	addrs, err := parseNetAddrs([]string{"127.0.0.1:8333", "[::1]:8333"})
	if err != nil {
		t.Fatalf("parseNetAddrs: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	for _, a := range addrs {
		if a.Port != 8333 {
			t.Errorf("port = %d, want 8333", a.Port)
		}
		if uint64(a.Services) != common.ServiceMask {
			t.Errorf("services = %d, want %d", a.Services, common.ServiceMask)
		}
	}
}

func TestParseNetAddrsRejectsMissingPort(t *testing.T) {
	if _, err := parseNetAddrs([]string{"127.0.0.1"}); err == nil {
		t.Fatal("expected error for address without a port")
	}
}

func TestParseWhitelistDecodesHexHashes(t *testing.T) {
	raw := map[int32]string{
		11111: "000000000003ba27aa200b1cecaad478d2b00432346c3f1f3986da1afd33e82",
	}
	wl, err := parseWhitelist(raw)
	if err != nil {
		t.Fatalf("parseWhitelist: %v", err)
	}
	if len(wl) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(wl))
	}
	if _, ok := wl[11111]; !ok {
		t.Fatal("expected height 11111 to be present")
	}
}

func TestParseWhitelistEmptyYieldsNil(t *testing.T) {
	wl, err := parseWhitelist(nil)
	if err != nil {
		t.Fatalf("parseWhitelist: %v", err)
	}
	if wl != nil {
		t.Fatalf("expected nil map for empty input, got %v", wl)
	}
}

func TestParseWhitelistRejectsBadHex(t *testing.T) {
	if _, err := parseWhitelist(map[int32]string{1: "not-a-hash"}); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestNetworkByNameKnownAndUnknown(t *testing.T) {
	if _, ok := networkByName("mainnet"); !ok {
		t.Error("expected mainnet to resolve")
	}
	if _, ok := networkByName("not-a-real-network"); ok {
		t.Error("expected unknown network name to fail")
	}
}

func TestSecondsToDuration(t *testing.T) {
	if got, want := secondsToDuration(30).Seconds(), 30.0; got != want {
		t.Errorf("secondsToDuration(30) = %v, want %v", got, want)
	}
}
