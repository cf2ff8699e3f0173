package chain

import (
	"testing"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

func TestResolveAliases(t *testing.T) {
	r := NewRegistry(nil)

	for _, input := range []string{"eth", "Ethereum", "MAINNET", "1"} {
		cfg, err := r.Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", input, err)
		}
		if cfg.ID != 1 {
			t.Fatalf("Resolve(%q): expected chain 1, got %d", input, cfg.ID)
		}
	}

	cfg, err := r.Resolve("base")
	if err != nil {
		t.Fatalf("Resolve(base) failed: %v", err)
	}
	if cfg.ID != 8453 || cfg.Native.Symbol != "ETH" {
		t.Fatalf("unexpected base config: %+v", cfg)
	}
}

func TestResolveUnknownIsTyped(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Resolve("solana")
	if err == nil {
		t.Fatal("expected error for unsupported chain")
	}
	if !clierr.Is(err, clierr.CodeChainUnsupported) {
		t.Fatalf("expected CHAIN_UNSUPPORTED, got %v", err)
	}
	if _, err := r.Resolve("999999"); !clierr.Is(err, clierr.CodeChainUnsupported) {
		t.Fatalf("numeric miss should be CHAIN_UNSUPPORTED, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	r := NewRegistry(nil)
	all := r.List(FilterAll)
	mainnets := r.List(FilterMainnet)
	testnets := r.List(FilterTestnet)

	if len(all) != len(mainnets)+len(testnets) {
		t.Fatalf("filter split mismatch: all=%d mainnet=%d testnet=%d", len(all), len(mainnets), len(testnets))
	}
	for _, cfg := range testnets {
		if !cfg.IsTestnet {
			t.Fatalf("chain %d leaked into testnet filter", cfg.ID)
		}
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatal("List output is not ordered by id")
		}
	}
}

func TestRegistryInvariants(t *testing.T) {
	r := NewRegistry(nil)
	seen := map[int64]bool{}
	for _, cfg := range r.List(FilterAll) {
		if seen[cfg.ID] {
			t.Fatalf("duplicate chain id %d", cfg.ID)
		}
		seen[cfg.ID] = true
		if len(cfg.Endpoints) == 0 {
			t.Fatalf("chain %d has no rpc endpoints", cfg.ID)
		}
	}
}

func TestRPCOverridesPrepend(t *testing.T) {
	r := NewRegistry(map[int64][]string{8453: {"http://localhost:8545"}})
	cfg, err := r.Resolve("base")
	if err != nil {
		t.Fatalf("Resolve(base) failed: %v", err)
	}
	first := cfg.Endpoints[0]
	if first.URL != "http://localhost:8545" || first.Provider != "custom" || first.Priority != 0 {
		t.Fatalf("override not prepended: %+v", first)
	}
}

func TestExplorerTxURL(t *testing.T) {
	r := NewRegistry(nil)
	cfg, _ := r.Resolve("base")
	got := cfg.ExplorerTxURL("0xabc")
	if got != "https://basescan.org/tx/0xabc" {
		t.Fatalf("unexpected explorer url: %s", got)
	}
}
