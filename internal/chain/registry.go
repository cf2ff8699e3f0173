package chain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

// NativeCurrency describes the gas asset of a chain.
type NativeCurrency struct {
	Name     string
	Symbol   string
	Decimals int
}

// Endpoint is one JSON-RPC endpoint of a chain's fallback set.
// Lower Priority values are preferred.
type Endpoint struct {
	URL      string
	Provider string
	Priority int
}

// DefaultToken is a registry-known token on a chain, used as the local
// fallback when every external token provider fails or returns nothing.
type DefaultToken struct {
	Symbol   string
	Name     string
	Address  string
	Decimals int
	Verified bool
}

// Config is the immutable per-chain record. Instances handed out by the
// registry are copies; callers must not mutate shared endpoint slices.
type Config struct {
	ID            int64
	Name          string
	Native        NativeCurrency
	Endpoints     []Endpoint
	ExplorerURL   string
	IsTestnet     bool
	DefaultTokens []DefaultToken
}

// Filter selects which chains List returns.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterMainnet Filter = "mainnet"
	FilterTestnet Filter = "testnet"
)

// Registry resolves chain names, aliases, and numeric IDs to chain
// configuration. Constructed once at startup; read-only afterwards.
type Registry struct {
	byID    map[int64]Config
	aliases map[string]int64
}

// NewRegistry builds the default registry, optionally prepending
// per-chain RPC URL overrides at priority 0.
func NewRegistry(rpcOverrides map[int64][]string) *Registry {
	r := &Registry{
		byID:    make(map[int64]Config, len(defaultChains)),
		aliases: make(map[string]int64, len(defaultAliases)),
	}
	for _, cfg := range defaultChains {
		if _, dup := r.byID[cfg.ID]; dup {
			panic(fmt.Sprintf("chain registry: duplicate chain id %d", cfg.ID))
		}
		if len(cfg.Endpoints) == 0 {
			panic(fmt.Sprintf("chain registry: chain %d has no rpc endpoints", cfg.ID))
		}
		if overrides := rpcOverrides[cfg.ID]; len(overrides) > 0 {
			custom := make([]Endpoint, 0, len(overrides)+len(cfg.Endpoints))
			for _, u := range overrides {
				u = strings.TrimSpace(u)
				if u == "" {
					continue
				}
				custom = append(custom, Endpoint{URL: u, Provider: "custom", Priority: 0})
			}
			cfg.Endpoints = append(custom, cfg.Endpoints...)
		}
		r.byID[cfg.ID] = cfg
	}
	for alias, id := range defaultAliases {
		r.aliases[alias] = id
	}
	return r
}

// Resolve accepts a chain name, alias, or numeric id, case-insensitive.
// Unknown input is a typed CHAIN_UNSUPPORTED error, never a guess.
func (r *Registry) Resolve(nameOrID string) (Config, error) {
	raw := strings.ToLower(strings.TrimSpace(nameOrID))
	if raw == "" {
		return Config{}, clierr.New(clierr.CodeChainUnsupported, "chain is required")
	}
	if id, ok := r.aliases[raw]; ok {
		return r.byID[id], nil
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if cfg, ok := r.byID[id]; ok {
			return cfg, nil
		}
	}
	return Config{}, clierr.Newf(clierr.CodeChainUnsupported, "unsupported chain %q", nameOrID)
}

// ResolveID looks a chain up by numeric id.
func (r *Registry) ResolveID(id int64) (Config, error) {
	if cfg, ok := r.byID[id]; ok {
		return cfg, nil
	}
	return Config{}, clierr.Newf(clierr.CodeChainUnsupported, "unsupported chain id %d", id)
}

// List returns chains matching the filter, ordered by id.
func (r *Registry) List(filter Filter) []Config {
	out := make([]Config, 0, len(r.byID))
	for _, cfg := range r.byID {
		switch filter {
		case FilterMainnet:
			if cfg.IsTestnet {
				continue
			}
		case FilterTestnet:
			if !cfg.IsTestnet {
				continue
			}
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExplorerTxURL builds the block-explorer link for a transaction hash.
func (c Config) ExplorerTxURL(txHash string) string {
	base := strings.TrimSuffix(c.ExplorerURL, "/")
	return base + "/tx/" + strings.TrimSpace(txHash)
}
