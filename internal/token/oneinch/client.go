package oneinch

import (
	"context"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/httpx"
	"github.com/ncasillas/txpilot/internal/token"
)

const defaultBaseURL = "https://tokens.1inch.io/v1.2"

var supportedChains = []int64{1, 10, 56, 137, 8453, 42161, 43114}

// Client reads the 1inch aggregated token map, keyed by address.
type Client struct {
	http    *httpx.Client
	baseURL string
	now     func() time.Time
}

func New(httpClient *httpx.Client) *Client {
	return &Client{http: httpClient, baseURL: defaultBaseURL, now: time.Now}
}

func (c *Client) Name() string { return "oneinch" }

type tokenEntry struct {
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals int      `json:"decimals"`
	Tags     []string `json:"tags"`
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

	lowered := strings.ToLower(query)
	out := make([]token.Token, 0, 8)
	for _, id := range chains {
		var byAddress map[string]tokenEntry
		if _, err := c.http.GetJSON(ctx, c.baseURL+"/"+strconv.FormatInt(id, 10), nil, &byAddress); err != nil {
			if chainID != 0 {
				return nil, err
			}
			continue
		}
		for addr, entry := range byAddress {
			if !strings.Contains(strings.ToLower(entry.Symbol), lowered) {
				continue
			}
			if entry.Decimals < 0 {
				continue
			}
			address := entry.Address
			if address == "" {
				address = addr
			}
			// 1inch represents the native asset with a sentinel address;
			// the registry already models natives, skip them here.
			if strings.EqualFold(address, "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee") {
				continue
			}
			out = append(out, token.Token{
				ChainID:  id,
				Address:  address,
				Symbol:   entry.Symbol,
				Name:     entry.Name,
				Decimals: entry.Decimals,
				Verified: hasTag(entry.Tags, "tokens"),
				Source:   c.Name(),
			})
		}
	}
	return out, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func supports(chainID int64) bool {
	for _, id := range supportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}
