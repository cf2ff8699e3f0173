package lifi

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/httpx"
	"github.com/ncasillas/txpilot/internal/token"
)

const defaultBaseURL = "https://li.quest/v1"

// Supported EVM chains on the LI.FI token endpoint.
var supportedChains = []int64{1, 10, 56, 137, 8453, 42161, 43114}

// Client searches LI.FI's token catalog by symbol.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: defaultBaseURL, apiKey: apiKey, now: time.Now}
}

func (c *Client) Name() string { return "lifi" }

type tokensResponse struct {
	Tokens map[string][]tokenEntry `json:"tokens"`
}

type tokenEntry struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId"`
	PriceUSD string `json:"priceUSD"`
}

func (c *Client) Search(ctx context.Context, symbol string, chainID int64) ([]token.Token, error) {
	query := strings.TrimSpace(symbol)
	if query == "" {
		return nil, clierr.New(clierr.CodeUsage, "symbol is required")
	}

	chains := supportedChains
	if chainID != 0 {
		if !supports(chainID) {
			return nil, nil
		}
		chains = []int64{chainID}
	}

	vals := url.Values{}
	ids := make([]string, 0, len(chains))
	for _, id := range chains {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	vals.Set("chains", strings.Join(ids, ","))

	headers := map[string]string{}
	if strings.TrimSpace(c.apiKey) != "" {
		headers["x-lifi-api-key"] = c.apiKey
	}

	var resp tokensResponse
	if _, err := c.http.GetJSON(ctx, c.baseURL+"/tokens?"+vals.Encode(), headers, &resp); err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	out := make([]token.Token, 0, 8)
	for chainKey, entries := range resp.Tokens {
		id, err := strconv.ParseInt(chainKey, 10, 64)
		if err != nil {
			continue
		}
		for _, entry := range entries {
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
				Verified: entry.PriceUSD != "",
				Source:   c.Name(),
			})
		}
	}
	return out, nil
}

func supports(chainID int64) bool {
	for _, id := range supportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}
