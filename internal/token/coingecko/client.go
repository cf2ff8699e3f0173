package coingecko

import (
	"context"
	"strings"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/httpx"
	"github.com/ncasillas/txpilot/internal/token"
)

const defaultBaseURL = "https://tokens.coingecko.com"

// CoinGecko publishes curated per-platform token lists in the standard
// Uniswap token-list format. Everything on them counts as verified.
var platformByChainID = map[int64]string{
	1:     "ethereum",
	10:    "optimistic-ethereum",
	56:    "binance-smart-chain",
	137:   "polygon-pos",
	8453:  "base",
	42161: "arbitrum-one",
	43114: "avalanche",
}

type Client struct {
	http    *httpx.Client
	baseURL string
	now     func() time.Time
}

func New(httpClient *httpx.Client) *Client {
	return &Client{http: httpClient, baseURL: defaultBaseURL, now: time.Now}
}

func (c *Client) Name() string { return "coingecko" }

type tokenList struct {
	Name   string      `json:"name"`
	Tokens []listEntry `json:"tokens"`
}

type listEntry struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func (c *Client) Search(ctx context.Context, symbol string, chainID int64) ([]token.Token, error) {
	query := strings.TrimSpace(symbol)
	if query == "" {
		return nil, clierr.New(clierr.CodeUsage, "symbol is required")
	}

	platforms := make(map[int64]string, len(platformByChainID))
	if chainID != 0 {
		platform, ok := platformByChainID[chainID]
		if !ok {
			return nil, nil
		}
		platforms[chainID] = platform
	} else {
		for id, platform := range platformByChainID {
			platforms[id] = platform
		}
	}

	lowered := strings.ToLower(query)
	out := make([]token.Token, 0, 8)
	for id, platform := range platforms {
		var list tokenList
		if _, err := c.http.GetJSON(ctx, c.baseURL+"/"+platform+"/all.json", nil, &list); err != nil {
			// A single platform list failing must not sink the others.
			if chainID != 0 {
				return nil, err
			}
			continue
		}
		for _, entry := range list.Tokens {
			if !strings.Contains(strings.ToLower(entry.Symbol), lowered) {
				continue
			}
			if entry.Address == "" || entry.Decimals < 0 {
				continue
			}
			out = append(out, token.Token{
				ChainID:  id,
				Address:  entry.Address,
				Symbol:   entry.Symbol,
				Name:     entry.Name,
				Decimals: entry.Decimals,
				Verified: true,
				Source:   c.Name(),
			})
		}
	}
	return out, nil
}
