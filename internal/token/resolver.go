package token

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
)

// SearchProvider is one external token-metadata source. chainID 0 asks
// for candidates on every supported chain.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, symbol string, chainID int64) ([]Token, error)
}

// Resolution is the outcome of a symbol lookup. Ambiguity is a normal
// result, not an error: callers must handle NeedsSelection explicitly.
type Resolution struct {
	Token          Token
	NeedsSelection bool
	Candidates     []Token
	Message        string
}

const defaultMaxCandidates = 20

// Resolver merges candidates from several providers, best effort: any
// subset of providers failing or timing out must not block resolution
// as long as one source (or the static table) can answer.
type Resolver struct {
	registry  *chain.Registry
	providers []SearchProvider

	perProviderTimeout time.Duration
	maxCandidates      int
	logger             *slog.Logger
	group              singleflight.Group
}

func NewResolver(registry *chain.Registry, providers []SearchProvider, perProviderTimeout time.Duration, logger *slog.Logger) *Resolver {
	if perProviderTimeout <= 0 {
		perProviderTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry:           registry,
		providers:          providers,
		perProviderTimeout: perProviderTimeout,
		maxCandidates:      defaultMaxCandidates,
		logger:             logger,
	}
}

// Resolve maps a human-entered symbol to a token on the given chain
// (chainID 0 = any chain). Identical concurrent lookups are coalesced.
func (r *Resolver) Resolve(ctx context.Context, symbol string, chainID int64) (Resolution, error) {
	query := strings.TrimSpace(symbol)
	if query == "" {
		return Resolution{}, clierr.New(clierr.CodeTokenNotFound, "token symbol is required")
	}

	// The chain's native symbol never goes through provider search.
	if chainID != 0 {
		if cfg, err := r.registry.ResolveID(chainID); err == nil && strings.EqualFold(cfg.Native.Symbol, query) {
			return Resolution{Token: Native(cfg)}, nil
		}
	}

	key := fmt.Sprintf("%s|%d", strings.ToLower(query), chainID)
	out, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, query, chainID)
	})
	if err != nil {
		return Resolution{}, err
	}
	return out.(Resolution), nil
}

func (r *Resolver) resolve(ctx context.Context, query string, chainID int64) (Resolution, error) {
	type providerResult struct {
		name   string
		tokens []Token
		err    error
	}

	results := make([]providerResult, len(r.providers))
	var wg sync.WaitGroup
	for i, p := range r.providers {
		wg.Add(1)
		go func(idx int, provider SearchProvider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, r.perProviderTimeout)
			defer cancel()
			tokens, err := provider.Search(pctx, query, chainID)
			results[idx] = providerResult{name: provider.Name(), tokens: tokens, err: err}
		}(i, p)
	}
	wg.Wait()

	contributed := 0
	merged := make([]Token, 0, 32)
	for _, res := range results {
		if res.err != nil {
			r.logger.Debug("token provider failed", "provider", res.name, "symbol", query, "error", res.err)
			continue
		}
		if len(res.tokens) > 0 {
			contributed++
		}
		merged = append(merged, res.tokens...)
	}

	candidates := r.rank(merged, query, chainID)
	if len(candidates) == 0 {
		candidates = r.staticFallback(query, chainID)
		if len(candidates) == 0 {
			return Resolution{}, clierr.Newf(clierr.CodeTokenNotFound, "no token found for symbol %q", query)
		}
		contributed = 0
	}
	if len(candidates) == 1 {
		return Resolution{Token: candidates[0]}, nil
	}

	msg := fmt.Sprintf("symbol %q matched %d tokens", query, len(candidates))
	if contributed > 0 {
		msg += fmt.Sprintf(" across %d providers", contributed)
	}
	msg += "; select one to continue"
	return Resolution{NeedsSelection: true, Candidates: candidates, Message: msg}, nil
}

// rank dedupes by (chainID, address), partitions into exact and partial
// symbol matches, puts exact first, and caps partials so the candidate
// list stays bounded. A single exact match short-circuits the set.
func (r *Resolver) rank(tokens []Token, query string, chainID int64) []Token {
	seen := make(map[string]bool, len(tokens))
	exact := make([]Token, 0, len(tokens))
	partial := make([]Token, 0, len(tokens))
	lowered := strings.ToLower(query)

	for _, t := range tokens {
		if chainID != 0 && t.ChainID != chainID {
			continue
		}
		if t.Address == "" || t.Decimals < 0 {
			continue
		}
		t = t.Checksummed()
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true

		switch {
		case strings.EqualFold(t.Symbol, query):
			exact = append(exact, t)
		case strings.Contains(strings.ToLower(t.Symbol), lowered):
			partial = append(partial, t)
		}
	}

	sortCandidates(exact)
	if len(exact) == 1 {
		return exact[:1]
	}
	sortCandidates(partial)

	room := r.maxCandidates - len(exact)
	if room < 0 {
		room = 0
	}
	if len(partial) > room {
		partial = partial[:room]
	}
	out := append(exact, partial...)
	if len(out) > r.maxCandidates {
		out = out[:r.maxCandidates]
	}
	return out
}

func (r *Resolver) staticFallback(query string, chainID int64) []Token {
	matches := make([]Token, 0, 4)
	for _, cfg := range r.registry.List(chain.FilterAll) {
		if chainID != 0 && cfg.ID != chainID {
			continue
		}
		for _, dt := range cfg.DefaultTokens {
			if strings.EqualFold(dt.Symbol, query) {
				matches = append(matches, Token{
					ChainID:  cfg.ID,
					Address:  dt.Address,
					Symbol:   dt.Symbol,
					Name:     dt.Name,
					Decimals: dt.Decimals,
					Verified: dt.Verified,
					Source:   "registry",
				}.Checksummed())
			}
		}
	}
	sortCandidates(matches)
	return matches
}

func sortCandidates(tokens []Token) {
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Verified != tokens[j].Verified {
			return tokens[i].Verified
		}
		if tokens[i].ChainID != tokens[j].ChainID {
			return tokens[i].ChainID < tokens[j].ChainID
		}
		return tokens[i].Address < tokens[j].Address
	})
}
