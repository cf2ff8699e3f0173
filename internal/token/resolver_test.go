package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
)

type fakeProvider struct {
	name   string
	tokens []Token
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, symbol string, chainID int64) ([]Token, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.tokens, f.err
}

func newTestResolver(t *testing.T, providers ...SearchProvider) *Resolver {
	t.Helper()
	return NewResolver(chain.NewRegistry(nil), providers, time.Second, nil)
}

const (
	usdcBase = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	daiBase  = "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"
)

func TestResolveSingleExactMatch(t *testing.T) {
	p := &fakeProvider{name: "one", tokens: []Token{
		{ChainID: 8453, Address: usdcBase, Symbol: "USDC", Decimals: 6, Verified: true},
	}}
	r := newTestResolver(t, p)

	res, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.NeedsSelection {
		t.Fatalf("expected single match, got selection: %+v", res)
	}
	if res.Token.Address != usdcBase {
		t.Fatalf("unexpected token: %+v", res.Token)
	}
}

func TestResolveMergesAndDeduplicates(t *testing.T) {
	// Two providers return the same token with different address casing
	// plus a second distinct exact match.
	p1 := &fakeProvider{name: "one", tokens: []Token{
		{ChainID: 8453, Address: usdcBase, Symbol: "USDC", Decimals: 6, Verified: true},
	}}
	p2 := &fakeProvider{name: "two", tokens: []Token{
		{ChainID: 8453, Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Decimals: 6},
		{ChainID: 8453, Address: daiBase, Symbol: "USDC", Decimals: 18},
	}}
	r := newTestResolver(t, p1, p2)

	res, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.NeedsSelection {
		t.Fatalf("expected needs-selection for two exact matches, got %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected deduped 2 candidates, got %d", len(res.Candidates))
	}
	if res.Message == "" {
		t.Fatal("expected a disambiguation message")
	}
}

func TestResolveToleratesProviderFailure(t *testing.T) {
	good := &fakeProvider{name: "good", tokens: []Token{
		{ChainID: 8453, Address: usdcBase, Symbol: "USDC", Decimals: 6, Verified: true},
	}}
	bad := &fakeProvider{name: "bad", err: errors.New("boom")}
	slow := &fakeProvider{name: "slow", delay: 5 * time.Second}

	r := NewResolver(chain.NewRegistry(nil), []SearchProvider{good, bad, slow}, 50*time.Millisecond, nil)
	res, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("partial provider failure must not block resolution: %v", err)
	}
	if res.NeedsSelection || res.Token.Address != usdcBase {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveStaticFallback(t *testing.T) {
	bad := &fakeProvider{name: "bad", err: errors.New("offline")}
	r := newTestResolver(t, bad)

	res, err := r.Resolve(context.Background(), "DAI", 8453)
	if err != nil {
		t.Fatalf("expected static table fallback: %v", err)
	}
	if res.NeedsSelection || res.Token.Decimals != 18 {
		t.Fatalf("unexpected fallback token: %+v", res)
	}
	if res.Token.Source != "registry" {
		t.Fatalf("fallback should come from registry, got %q", res.Token.Source)
	}
}

func TestResolveNotFound(t *testing.T) {
	empty := &fakeProvider{name: "empty"}
	r := newTestResolver(t, empty)

	_, err := r.Resolve(context.Background(), "NOPE", 8453)
	if !clierr.Is(err, clierr.CodeTokenNotFound) {
		t.Fatalf("expected TOKEN_NOT_FOUND, got %v", err)
	}
}

func TestResolveNativeSymbolShortCircuits(t *testing.T) {
	p := &fakeProvider{name: "untouched"}
	r := newTestResolver(t, p)

	res, err := r.Resolve(context.Background(), "ETH", 8453)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Token.IsNative() {
		t.Fatalf("expected native token, got %+v", res.Token)
	}
	if p.calls != 0 {
		t.Fatal("native symbol must not hit providers")
	}
}

func TestResolveIdempotent(t *testing.T) {
	p := &fakeProvider{name: "p", tokens: []Token{
		{ChainID: 8453, Address: usdcBase, Symbol: "USDC", Decimals: 6, Verified: true},
		{ChainID: 8453, Address: daiBase, Symbol: "USDC", Decimals: 18},
	}}
	r := newTestResolver(t, p)

	first, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if len(first.Candidates) != len(second.Candidates) {
		t.Fatalf("candidate sets differ: %d vs %d", len(first.Candidates), len(second.Candidates))
	}
	for i := range first.Candidates {
		if first.Candidates[i].Key() != second.Candidates[i].Key() {
			t.Fatalf("candidate order changed at %d", i)
		}
	}
}

func TestRankCapsPartialMatches(t *testing.T) {
	tokens := make([]Token, 0, 30)
	for i := 0; i < 30; i++ {
		tokens = append(tokens, Token{
			ChainID:  8453,
			Address:  testAddr(i),
			Symbol:   "USDCx",
			Decimals: 18,
		})
	}
	p := &fakeProvider{name: "p", tokens: tokens}
	r := newTestResolver(t, p)

	res, err := r.Resolve(context.Background(), "USDC", 8453)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.NeedsSelection {
		t.Fatal("expected needs-selection")
	}
	if len(res.Candidates) > defaultMaxCandidates {
		t.Fatalf("candidate list unbounded: %d", len(res.Candidates))
	}
}

func testAddr(i int) string {
	const hexdigits = "0123456789abcdef"
	suffix := string([]byte{hexdigits[(i>>4)&0xf], hexdigits[i&0xf]})
	return "0x00000000000000000000000000000000000000" + suffix
}
