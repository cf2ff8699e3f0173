package validate

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ncasillas/txpilot/internal/amount"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/policy"
	"github.com/ncasillas/txpilot/internal/token"
)

// Client is the chain-read surface validation needs; rpcpool.ChainClient
// satisfies it.
type Client interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// routerGasLimit is the conservative fixed gas budget assumed for swap
// and bridge router calls, which cannot be estimated before the route
// is quoted.
const routerGasLimit = 400_000

const erc20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var parsedERC20ABI = mustABI(erc20ABI)

// Report is the cost picture of a validated intent, all in wei except
// the raw gas estimate.
type Report struct {
	GasEstimate uint64
	GasPriceWei *big.Int
	GasCostWei  *big.Int
	TotalWei    *big.Int
}

// Validator proves an intent is fundable before anything signs it.
type Validator struct {
	client Client
}

func NewValidator(client Client) *Validator {
	return &Validator{client: client}
}

// Validate checks balances, simulates the call and estimates gas for
// one intent. The cheap balance comparison runs before any gas work so
// an obviously underfunded request never costs an estimation
// round-trip. Router operations carry no calldata yet and skip the
// simulation.
func (v *Validator) Validate(ctx context.Context, n intent.Normalized, from common.Address, cfg policy.Config) (Report, error) {
	switch t := n.(type) {
	case intent.NativeTransfer:
		return v.validateNative(ctx, from, t.To, t.AmountWei, cfg)
	case intent.ERC20Transfer:
		return v.validateERC20(ctx, from, t.To, t.Token, t.AmountWei, cfg)
	default:
		tok, hasToken := intent.SourceToken(n)
		if hasToken {
			return v.validateRouterToken(ctx, from, tok, n.Amount(), cfg)
		}
		return v.validateRouterNative(ctx, from, n.Amount(), cfg)
	}
}

func (v *Validator) validateNative(ctx context.Context, from, to common.Address, wei *big.Int, cfg policy.Config) (Report, error) {
	balance, err := v.client.BalanceAt(ctx, from)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeUnavailable, "read balance", err)
	}
	if balance.Cmp(wei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientFunds,
			"balance %s is less than the %s to send",
			amount.FromBaseUnits(balance, 18), amount.FromBaseUnits(wei, 18))
	}

	msg := ethereum.CallMsg{From: from, To: &to, Value: wei}
	if _, err := v.client.CallContract(ctx, msg, nil); err != nil {
		return Report{}, clierr.Wrap(clierr.CodeSimulationFailed, "simulate transfer (eth_call)", err)
	}
	estimate, err := v.client.EstimateGas(ctx, msg)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeGasEstimationFailed, "estimate transfer gas", err)
	}
	report, err := v.costReport(ctx, estimate, cfg)
	if err != nil {
		return Report{}, err
	}
	report.TotalWei = new(big.Int).Add(wei, report.GasCostWei)

	if balance.Cmp(report.TotalWei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientFundsWithGas,
			"balance %s cannot cover %s plus %s gas",
			amount.FromBaseUnits(balance, 18), amount.FromBaseUnits(wei, 18),
			amount.FromBaseUnits(report.GasCostWei, 18))
	}
	if cfg.MinBalanceLeftWei != nil {
		remaining := new(big.Int).Sub(balance, report.TotalWei)
		if remaining.Cmp(cfg.MinBalanceLeftWei) < 0 {
			return Report{}, clierr.Newf(clierr.CodeBalanceTooLowAfterTx,
				"sending would leave %s, below the %s floor",
				amount.FromBaseUnits(remaining, 18), amount.FromBaseUnits(cfg.MinBalanceLeftWei, 18))
		}
	}
	return report, nil
}

func (v *Validator) validateERC20(ctx context.Context, from, to common.Address, tok token.Token, units *big.Int, cfg policy.Config) (Report, error) {
	tokenBalance, err := v.BalanceOf(ctx, tok, from)
	if err != nil {
		return Report{}, err
	}
	if tokenBalance.Cmp(units) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientTokenBalance,
			"%s balance %s is less than the %s to send", tok.Symbol,
			amount.FromBaseUnits(tokenBalance, tok.Decimals), amount.FromBaseUnits(units, tok.Decimals))
	}

	data, err := parsedERC20ABI.Pack("transfer", to, units)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeInternal, "pack transfer calldata", err)
	}
	contract := common.HexToAddress(tok.Address)
	msg := ethereum.CallMsg{From: from, To: &contract, Data: data}
	if _, err := v.client.CallContract(ctx, msg, nil); err != nil {
		return Report{}, clierr.Wrap(clierr.CodeSimulationFailed, "simulate token transfer (eth_call)", err)
	}
	estimate, err := v.client.EstimateGas(ctx, msg)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeGasEstimationFailed, "estimate token transfer gas", err)
	}
	report, err := v.costReport(ctx, estimate, cfg)
	if err != nil {
		return Report{}, err
	}
	report.TotalWei = report.GasCostWei

	nativeBalance, err := v.client.BalanceAt(ctx, from)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeUnavailable, "read balance", err)
	}
	if nativeBalance.Cmp(report.GasCostWei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientGasFunds,
			"native balance %s cannot cover %s gas for the token transfer",
			amount.FromBaseUnits(nativeBalance, 18), amount.FromBaseUnits(report.GasCostWei, 18))
	}
	return report, nil
}

// validateRouterNative covers swaps and bridges funded by the native
// asset. Router calldata is not known yet, so gas is a fixed budget.
func (v *Validator) validateRouterNative(ctx context.Context, from common.Address, wei *big.Int, cfg policy.Config) (Report, error) {
	balance, err := v.client.BalanceAt(ctx, from)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeUnavailable, "read balance", err)
	}
	if balance.Cmp(wei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientFunds,
			"balance %s is less than the %s to route",
			amount.FromBaseUnits(balance, 18), amount.FromBaseUnits(wei, 18))
	}
	report, err := v.costReport(ctx, routerGasLimit, cfg)
	if err != nil {
		return Report{}, err
	}
	report.TotalWei = new(big.Int).Add(wei, report.GasCostWei)
	if balance.Cmp(report.TotalWei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientFundsWithGas,
			"balance %s cannot cover %s plus %s router gas",
			amount.FromBaseUnits(balance, 18), amount.FromBaseUnits(wei, 18),
			amount.FromBaseUnits(report.GasCostWei, 18))
	}
	return report, nil
}

func (v *Validator) validateRouterToken(ctx context.Context, from common.Address, tok token.Token, units *big.Int, cfg policy.Config) (Report, error) {
	tokenBalance, err := v.BalanceOf(ctx, tok, from)
	if err != nil {
		return Report{}, err
	}
	if tokenBalance.Cmp(units) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientTokenBalance,
			"%s balance %s is less than the %s to route", tok.Symbol,
			amount.FromBaseUnits(tokenBalance, tok.Decimals), amount.FromBaseUnits(units, tok.Decimals))
	}

	report, err := v.costReport(ctx, routerGasLimit, cfg)
	if err != nil {
		return Report{}, err
	}
	report.TotalWei = report.GasCostWei

	nativeBalance, err := v.client.BalanceAt(ctx, from)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeUnavailable, "read balance", err)
	}
	if nativeBalance.Cmp(report.GasCostWei) < 0 {
		return Report{}, clierr.Newf(clierr.CodeInsufficientGasFunds,
			"native balance %s cannot cover %s router gas",
			amount.FromBaseUnits(nativeBalance, 18), amount.FromBaseUnits(report.GasCostWei, 18))
	}
	return report, nil
}

// BalanceOf reads an ERC-20 balance with the minimal ABI fragment.
func (v *Validator) BalanceOf(ctx context.Context, tok token.Token, owner common.Address) (*big.Int, error) {
	data, err := parsedERC20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack balanceOf calldata", err)
	}
	contract := common.HexToAddress(tok.Address)
	out, err := v.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read token balance", err)
	}
	values, err := parsedERC20ABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return nil, clierr.Newf(clierr.CodeUnavailable, "malformed balanceOf response from %s", tok.Address)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, clierr.Newf(clierr.CodeUnavailable, "malformed balanceOf response from %s", tok.Address)
	}
	return balance, nil
}

// costReport applies the gas headroom ratio and prices the result.
func (v *Validator) costReport(ctx context.Context, estimate uint64, cfg policy.Config) (Report, error) {
	num, den := cfg.GasHeadroomNum, cfg.GasHeadroomDen
	if num <= 0 || den <= 0 {
		num, den = 110, 100
	}
	padded := new(big.Int).Mul(new(big.Int).SetUint64(estimate), big.NewInt(num))
	padded.Div(padded, big.NewInt(den))

	gasPrice, err := v.client.SuggestGasPrice(ctx)
	if err != nil {
		return Report{}, clierr.Wrap(clierr.CodeGasEstimationFailed, "fetch gas price", err)
	}
	gasCost := new(big.Int).Mul(padded, gasPrice)
	return Report{
		GasEstimate: padded.Uint64(),
		GasPriceWei: gasPrice,
		GasCostWei:  gasCost,
	}, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
