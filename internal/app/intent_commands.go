package app

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ncasillas/txpilot/internal/amount"
	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/execution"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/pipeline"
	"github.com/ncasillas/txpilot/internal/policy"
	"github.com/ncasillas/txpilot/internal/token"
	"github.com/ncasillas/txpilot/internal/validate"
)

// transferGasLimit is the plain native transfer cost, used only to
// budget gas when resolving a "max" amount.
const transferGasLimit = 21_000

type intentFlags struct {
	amount  string
	token   string
	toToken string
	chain   string
	toChain string
	to      string
	from    string
	yes     bool
}

func addCommonIntentFlags(fs *pflag.FlagSet, f *intentFlags) {
	fs.StringVar(&f.amount, "amount", "", "Amount in token units, or \"max\"")
	fs.StringVar(&f.from, "from", "", "Sender address (defaults to the configured account)")
	fs.BoolVar(&f.yes, "yes", false, "Approve the confirmation prompt")
}

func (s *runtimeState) newSendCommand() *cobra.Command {
	var f intentFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send native currency or an ERC-20 token",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := intent.Raw{
				Action:    "send",
				Chain:     f.chain,
				Token:     f.token,
				Amount:    f.amount,
				Recipient: f.to,
				Sender:    f.from,
			}
			return s.runIntent(cmd, raw, f.yes)
		},
	}
	addCommonIntentFlags(cmd.Flags(), &f)
	cmd.Flags().StringVar(&f.token, "token", "", "Token symbol or address (empty for the native asset)")
	cmd.Flags().StringVar(&f.chain, "chain", "ethereum", "Chain name or id")
	cmd.Flags().StringVar(&f.to, "to", "", "Recipient address or ENS name")
	return cmd
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var f intentFlags
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one token for another on the same chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := intent.Raw{
				Action:    "swap",
				Chain:     f.chain,
				Token:     f.token,
				ToToken:   f.toToken,
				Amount:    f.amount,
				Recipient: f.to,
				Sender:    f.from,
			}
			return s.runIntent(cmd, raw, f.yes)
		},
	}
	addCommonIntentFlags(cmd.Flags(), &f)
	cmd.Flags().StringVar(&f.token, "from-token", "", "Token to sell (symbol or address)")
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "Token to buy (symbol or address)")
	cmd.Flags().StringVar(&f.chain, "chain", "ethereum", "Chain name or id")
	cmd.Flags().StringVar(&f.to, "to", "", "Recipient (defaults to the sender)")
	return cmd
}

func (s *runtimeState) newBridgeCommand() *cobra.Command {
	var f intentFlags
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Move an asset to another chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := intent.Raw{
				Action:    "bridge",
				Chain:     f.chain,
				ToChain:   f.toChain,
				Token:     f.token,
				ToToken:   f.toToken,
				Amount:    f.amount,
				Recipient: f.to,
				Sender:    f.from,
			}
			return s.runIntent(cmd, raw, f.yes)
		},
	}
	addCommonIntentFlags(cmd.Flags(), &f)
	cmd.Flags().StringVar(&f.token, "token", "", "Token to bridge (symbol or address, empty for native)")
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "Different token to receive on the destination chain")
	cmd.Flags().StringVar(&f.chain, "from-chain", "ethereum", "Source chain name or id")
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "Destination chain name or id")
	cmd.Flags().StringVar(&f.to, "to", "", "Recipient (defaults to the sender)")
	return cmd
}

func (s *runtimeState) runIntent(cmd *cobra.Command, raw intent.Raw, confirmed bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(raw.Sender) == "" {
		sender, err := s.defaultSender()
		if err != nil {
			return err
		}
		raw.Sender = sender
	}

	if amount.IsMax(raw.Amount) {
		resolved, err := s.resolveMaxAmount(ctx, raw)
		if err != nil {
			return err
		}
		raw.Amount = resolved
	}

	stages := &chainStages{state: s}
	var awaiter pipeline.Awaiter
	if s.settings.MonitorTimeout > 0 {
		awaiter = stages
	}
	p := pipeline.New(s.normalizer, s.guard, s.engine, stages, stages, awaiter, s.logger)

	result, err := p.Run(ctx, pipeline.Request{
		UserID:    s.userID(),
		Mode:      s.settings.Mode,
		Raw:       raw,
		Confirmed: confirmed,
	})
	if err != nil {
		return err
	}
	return s.renderResult(cmd.OutOrStdout(), result)
}

// resolveMaxAmount turns "max" into a concrete decimal amount before
// normalization. Native sends leave gas headroom and the policy floor
// behind; token sends spend the full token balance.
func (s *runtimeState) resolveMaxAmount(ctx context.Context, raw intent.Raw) (string, error) {
	cfg, err := s.registry.Resolve(raw.Chain)
	if err != nil {
		return "", err
	}
	client, err := s.client(cfg.ID)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(raw.Sender) {
		return "", clierr.Newf(clierr.CodeAddressInvalid, "sender %q is not a hex address", raw.Sender)
	}
	from := common.HexToAddress(raw.Sender)

	tok := strings.TrimSpace(raw.Token)
	if tok == "" || strings.EqualFold(tok, cfg.Native.Symbol) {
		balance, err := client.BalanceAt(ctx, from)
		if err != nil {
			return "", err
		}
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return "", err
		}
		gasCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))
		maxWei, err := s.engine.ResolveMaxAmount(balance, gasCost)
		if err != nil {
			return "", err
		}
		return amount.FromBaseUnits(maxWei, cfg.Native.Decimals), nil
	}

	// Token max needs a resolved token up front; require a literal
	// address so the resolution cannot fan out into a selection here.
	if !common.IsHexAddress(tok) {
		return "", clierr.New(clierr.CodeMaxAmountNeedsValidation,
			"max with a token needs the token's address; pass --token 0x...")
	}
	selected := tokenByAddress(cfg, tok)
	balance, err := validate.NewValidator(client).BalanceOf(ctx, selected, from)
	if err != nil {
		return "", err
	}
	if balance.Sign() <= 0 {
		return "", clierr.Newf(clierr.CodeInsufficientTokenBalance, "no %s balance to send", selected.Symbol)
	}
	return amount.FromBaseUnits(balance, selected.Decimals), nil
}

// tokenByAddress builds a token record for a literal address, taking
// metadata from the registry when the chain knows the token. Unknown
// addresses get the 18-decimal default, same as normalization.
func tokenByAddress(cfg chain.Config, address string) token.Token {
	for _, dt := range cfg.DefaultTokens {
		if strings.EqualFold(dt.Address, address) {
			return token.Token{
				ChainID:  cfg.ID,
				Address:  dt.Address,
				Symbol:   dt.Symbol,
				Name:     dt.Name,
				Decimals: dt.Decimals,
				Verified: dt.Verified,
				Source:   "registry",
			}
		}
	}
	return token.Token{ChainID: cfg.ID, Address: address, Symbol: "TOKEN", Decimals: 18}
}

// chainStages adapts the per-chain validator, router and monitor to
// the pipeline's chain-agnostic stage interfaces. One instance serves
// one request; Await reuses the chain Execute ran on.
type chainStages struct {
	state *runtimeState

	mu        sync.Mutex
	lastChain int64
}

func (c *chainStages) Validate(ctx context.Context, n intent.Normalized, from common.Address, cfg policy.Config) (validate.Report, error) {
	client, err := c.state.client(n.SourceChain())
	if err != nil {
		return validate.Report{}, err
	}
	return validate.NewValidator(client).Validate(ctx, n, from, cfg)
}

func (c *chainStages) Execute(ctx context.Context, mode string, n intent.Normalized, from common.Address) (execution.Receipt, error) {
	router, err := c.state.routerFor(ctx, n.SourceChain())
	if err != nil {
		return execution.Receipt{}, err
	}
	c.mu.Lock()
	c.lastChain = n.SourceChain()
	c.mu.Unlock()
	return router.Execute(ctx, mode, n, from)
}

func (c *chainStages) Await(ctx context.Context, txHash string) (execution.Confirmation, error) {
	c.mu.Lock()
	chainID := c.lastChain
	c.mu.Unlock()
	client, err := c.state.client(chainID)
	if err != nil {
		return execution.Confirmation{}, err
	}
	monitor := execution.NewMonitor(client, c.state.settings.MonitorTimeout, c.state.settings.MonitorInterval, c.state.logger)
	return monitor.Await(ctx, txHash)
}
