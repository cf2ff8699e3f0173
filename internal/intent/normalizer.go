package intent

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/amount"
	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/ens"
	"github.com/ncasillas/txpilot/internal/token"
)

// TokenResolver is the symbol-lookup collaborator. chainID 0 means
// any chain.
type TokenResolver interface {
	Resolve(ctx context.Context, symbol string, chainID int64) (token.Resolution, error)
}

// NameResolver turns a name-service identifier into an address.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (common.Address, error)
}

// Selection asks the caller to pick one token and re-enter with the
// choice on the corresponding Selected* field of the raw intent.
type Selection struct {
	Field      string `json:"field"` // "token" or "to_token"
	Candidates []token.Token
	Message    string
}

// Outcome is either a fully normalized intent or a selection request,
// never both.
type Outcome struct {
	Intent    Normalized
	Selection *Selection
}

type Normalizer struct {
	registry *chain.Registry
	tokens   TokenResolver
	names    NameResolver
	logger   *slog.Logger
}

func NewNormalizer(registry *chain.Registry, tokens TokenResolver, names NameResolver, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{registry: registry, tokens: tokens, names: names, logger: logger}
}

// Normalize turns a raw intent into one variant of the sealed sum type.
// Everything ambiguous is settled here: chains are resolved against the
// registry, symbols against the token resolver, names against ENS, and
// amounts converted to base units. A MAX amount cannot be settled
// without a balance, so it surfaces as MAX_AMOUNT_NEEDS_VALIDATION and
// the caller re-enters with the resolved amount.
func (n *Normalizer) Normalize(ctx context.Context, raw Raw) (Outcome, error) {
	action := strings.ToLower(strings.TrimSpace(raw.Action))

	srcChain, err := n.registry.Resolve(raw.Chain)
	if err != nil {
		return Outcome{}, err
	}

	switch action {
	case "send", "transfer":
		return n.normalizeTransfer(ctx, raw, srcChain)
	case "swap":
		return n.normalizeSwap(ctx, raw, srcChain)
	case "bridge":
		return n.normalizeBridge(ctx, raw, srcChain)
	default:
		return Outcome{}, clierr.Newf(clierr.CodeUsage, "unknown action %q (want send, swap or bridge)", raw.Action)
	}
}

func (n *Normalizer) normalizeTransfer(ctx context.Context, raw Raw, srcChain chain.Config) (Outcome, error) {
	if strings.TrimSpace(raw.Recipient) == "" {
		return Outcome{}, clierr.New(clierr.CodeRecipientRequired, "transfers require an explicit recipient")
	}
	to, err := n.resolveAddress(ctx, raw.Recipient)
	if err != nil {
		return Outcome{}, err
	}

	tok, sel, err := n.resolveToken(ctx, raw.Token, raw.SelectedToken, srcChain, "token")
	if err != nil {
		return Outcome{}, err
	}
	if sel != nil {
		return Outcome{Selection: sel}, nil
	}

	wei, err := n.toBaseUnits(raw.Amount, tok.Decimals)
	if err != nil {
		return Outcome{}, err
	}

	// A zero-address ERC-20 is the native asset by convention.
	if tok.IsNative() {
		return Outcome{Intent: NativeTransfer{ChainID: srcChain.ID, To: to, AmountWei: wei}}, nil
	}
	return Outcome{Intent: ERC20Transfer{ChainID: srcChain.ID, To: to, Token: tok, AmountWei: wei}}, nil
}

func (n *Normalizer) normalizeSwap(ctx context.Context, raw Raw, srcChain chain.Config) (Outcome, error) {
	if raw.ToChain != "" {
		dstChain, err := n.registry.Resolve(raw.ToChain)
		if err != nil {
			return Outcome{}, err
		}
		if dstChain.ID != srcChain.ID {
			return Outcome{}, clierr.Newf(clierr.CodeChainMismatch,
				"swaps stay on one chain; got %s and %s (use bridge for cross-chain)", srcChain.Name, dstChain.Name)
		}
	}

	to, err := n.recipientOrSender(ctx, raw)
	if err != nil {
		return Outcome{}, err
	}

	from, sel, err := n.resolveToken(ctx, raw.Token, raw.SelectedToken, srcChain, "token")
	if err != nil {
		return Outcome{}, err
	}
	if sel != nil {
		return Outcome{Selection: sel}, nil
	}
	toTok, sel, err := n.resolveToken(ctx, raw.ToToken, raw.SelectedToToken, srcChain, "to_token")
	if err != nil {
		return Outcome{}, err
	}
	if sel != nil {
		return Outcome{Selection: sel}, nil
	}
	if from.Key() == toTok.Key() {
		return Outcome{}, clierr.Newf(clierr.CodeUsage, "cannot swap %s for itself", from.Symbol)
	}

	wei, err := n.toBaseUnits(raw.Amount, from.Decimals)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Intent: Swap{ChainID: srcChain.ID, FromToken: from, ToToken: toTok, FromAmount: wei, To: to}}, nil
}

func (n *Normalizer) normalizeBridge(ctx context.Context, raw Raw, srcChain chain.Config) (Outcome, error) {
	if strings.TrimSpace(raw.ToChain) == "" {
		return Outcome{}, clierr.New(clierr.CodeChainMismatch, "bridging requires a destination chain")
	}
	dstChain, err := n.registry.Resolve(raw.ToChain)
	if err != nil {
		return Outcome{}, err
	}
	if dstChain.ID == srcChain.ID {
		return Outcome{}, clierr.Newf(clierr.CodeChainMismatch,
			"bridge source and destination are both %s (use swap for same-chain)", srcChain.Name)
	}

	to, err := n.recipientOrSender(ctx, raw)
	if err != nil {
		return Outcome{}, err
	}

	from, sel, err := n.resolveToken(ctx, raw.Token, raw.SelectedToken, srcChain, "token")
	if err != nil {
		return Outcome{}, err
	}
	if sel != nil {
		return Outcome{Selection: sel}, nil
	}

	wei, err := n.toBaseUnits(raw.Amount, from.Decimals)
	if err != nil {
		return Outcome{}, err
	}

	// No destination token, or the same symbol, is a plain bridge; a
	// different destination asset makes it a bridge-swap.
	dstSymbol := strings.TrimSpace(raw.ToToken)
	if raw.SelectedToToken == nil && (dstSymbol == "" || strings.EqualFold(dstSymbol, from.Symbol)) {
		return Outcome{Intent: Bridge{FromChainID: srcChain.ID, ToChainID: dstChain.ID, Token: from, AmountWei: wei, To: to}}, nil
	}

	toTok, sel, err := n.resolveToken(ctx, raw.ToToken, raw.SelectedToToken, dstChain, "to_token")
	if err != nil {
		return Outcome{}, err
	}
	if sel != nil {
		return Outcome{Selection: sel}, nil
	}
	return Outcome{Intent: BridgeSwap{
		FromChainID: srcChain.ID,
		ToChainID:   dstChain.ID,
		FromToken:   from,
		ToToken:     toTok,
		FromAmount:  wei,
		To:          to,
	}}, nil
}

// resolveToken settles the asset for one side of the intent. An empty
// symbol means the chain's native asset; a hex address is taken
// literally; anything else goes through the resolver and may come back
// as a selection request.
func (n *Normalizer) resolveToken(ctx context.Context, symbol string, selected *token.Token, cfg chain.Config, field string) (token.Token, *Selection, error) {
	if selected != nil {
		if selected.ChainID != cfg.ID {
			return token.Token{}, nil, clierr.Newf(clierr.CodeChainMismatch,
				"selected token %s lives on chain %d, intent targets %s", selected.Symbol, selected.ChainID, cfg.Name)
		}
		return selected.Checksummed(), nil, nil
	}

	clean := strings.TrimSpace(symbol)
	if clean == "" || strings.EqualFold(clean, cfg.Native.Symbol) {
		return token.Native(cfg), nil, nil
	}
	if strings.HasPrefix(clean, "0x") {
		if !common.IsHexAddress(clean) {
			return token.Token{}, nil, clierr.Newf(clierr.CodeAddressInvalid, "%q is not a valid token address", symbol)
		}
		addr := common.HexToAddress(clean)
		if addr == (common.Address{}) {
			return token.Native(cfg), nil, nil
		}
		for _, dt := range cfg.DefaultTokens {
			if strings.EqualFold(dt.Address, addr.Hex()) {
				return token.Token{
					ChainID:  cfg.ID,
					Address:  dt.Address,
					Symbol:   dt.Symbol,
					Name:     dt.Name,
					Decimals: dt.Decimals,
					Verified: dt.Verified,
					Source:   "registry",
				}.Checksummed(), nil, nil
			}
		}
		// Unknown contract addresses are taken at face value with the
		// common 18-decimal assumption; policy flags them as unverified.
		return token.Token{
			ChainID:  cfg.ID,
			Address:  addr.Hex(),
			Symbol:   addr.Hex()[:10],
			Decimals: 18,
			Source:   "address",
		}, nil, nil
	}

	res, err := n.tokens.Resolve(ctx, clean, cfg.ID)
	if err != nil {
		return token.Token{}, nil, err
	}
	if res.NeedsSelection {
		return token.Token{}, &Selection{Field: field, Candidates: res.Candidates, Message: res.Message}, nil
	}
	if res.Token.IsNative() {
		return token.Native(cfg), nil, nil
	}
	return res.Token.Checksummed(), nil, nil
}

func (n *Normalizer) recipientOrSender(ctx context.Context, raw Raw) (common.Address, error) {
	if strings.TrimSpace(raw.Recipient) != "" {
		return n.resolveAddress(ctx, raw.Recipient)
	}
	if strings.TrimSpace(raw.Sender) == "" {
		return common.Address{}, clierr.New(clierr.CodeRecipientRequired, "no recipient and no sender to default to")
	}
	return n.resolveAddress(ctx, raw.Sender)
}

// resolveAddress accepts a checksummable hex address or a name-service
// identifier. Name resolution failures are hard errors so funds never
// go to a guessed address.
func (n *Normalizer) resolveAddress(ctx context.Context, input string) (common.Address, error) {
	clean := strings.TrimSpace(input)
	if ens.IsName(clean) {
		if n.names == nil {
			return common.Address{}, clierr.Newf(clierr.CodeEnsResolutionFailed, "no name resolver configured for %q", clean)
		}
		addr, err := n.names.Resolve(ctx, clean)
		if err != nil {
			return common.Address{}, err
		}
		n.logger.Debug("resolved name", "name", clean, "address", addr.Hex())
		return addr, nil
	}
	if !common.IsHexAddress(clean) {
		return common.Address{}, clierr.Newf(clierr.CodeAddressInvalid, "%q is not a hex address or a resolvable name", input)
	}
	return common.HexToAddress(clean), nil
}

func (n *Normalizer) toBaseUnits(raw string, decimals int) (*big.Int, error) {
	if amount.IsMax(raw) {
		return nil, clierr.New(clierr.CodeMaxAmountNeedsValidation,
			"MAX amounts need a balance check; resolve the spendable maximum and retry with a concrete amount")
	}
	return amount.ToBaseUnits(raw, decimals)
}
