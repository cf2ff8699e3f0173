package rpcpool

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ncasillas/txpilot/internal/chain"
)

// Backend is the ethclient surface the pipeline uses. *ethclient.Client
// satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// DialFunc opens a backend for one endpoint URL.
type DialFunc func(ctx context.Context, url string) (Backend, error)

func dialEthclient(ctx context.Context, url string) (Backend, error) {
	return ethclient.DialContext(ctx, url)
}

// ChainClient exposes typed chain operations over the fallback client.
// Backends are dialed lazily and cached per URL.
type ChainClient struct {
	cfg      chain.Config
	fallback *FallbackClient
	dial     DialFunc

	mu       sync.Mutex
	backends map[string]Backend
}

func NewChainClient(cfg chain.Config, health *HealthTracker, logger *slog.Logger) *ChainClient {
	return &ChainClient{
		cfg:      cfg,
		fallback: NewFallbackClient(cfg.Endpoints, health, logger),
		dial:     dialEthclient,
		backends: make(map[string]Backend),
	}
}

func (c *ChainClient) Chain() chain.Config       { return c.cfg }
func (c *ChainClient) Fallback() *FallbackClient { return c.fallback }

func (c *ChainClient) backend(ctx context.Context, url string) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if be, ok := c.backends[url]; ok {
		return be, nil
	}
	be, err := c.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	c.backends[url] = be
	return be, nil
}

// do runs op against backends in fallback order.
func (c *ChainClient) do(ctx context.Context, op func(ctx context.Context, be Backend) error) error {
	_, err := c.fallback.Call(ctx, func(ctx context.Context, url string) error {
		be, err := c.backend(ctx, url)
		if err != nil {
			return err
		}
		return op(ctx, be)
	})
	return err
}

func (c *ChainClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.BalanceAt(ctx, account, nil)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.SuggestGasTipCap(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var out uint64
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.PendingNonceAt(ctx, account)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var out *types.Header
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.HeaderByNumber(ctx, number)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *ChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, func(ctx context.Context, be Backend) error {
		return be.SendTransaction(ctx, tx)
	})
}

func (c *ChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var out *types.Receipt
	err := c.do(ctx, func(ctx context.Context, be Backend) error {
		v, err := be.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
