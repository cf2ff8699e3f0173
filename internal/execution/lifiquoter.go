package execution

import (
	"context"
	"math/big"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/httpx"
	"github.com/ncasillas/txpilot/internal/intent"
)

const lifiQuoteBaseURL = "https://li.quest/v1"

// LiFiQuoter asks the LI.FI aggregator for an executable route. The
// quote response carries a ready transaction request, so the backend
// only signs and broadcasts.
type LiFiQuoter struct {
	client  *httpx.Client
	baseURL string
	apiKey  string
}

func NewLiFiQuoter(client *httpx.Client, apiKey string) *LiFiQuoter {
	return &LiFiQuoter{client: client, baseURL: lifiQuoteBaseURL, apiKey: apiKey}
}

type lifiQuoteResponse struct {
	TransactionRequest struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"transactionRequest"`
}

func (q *LiFiQuoter) Quote(ctx context.Context, n intent.Normalized, from common.Address) (Call, error) {
	params, err := quoteParams(n, from)
	if err != nil {
		return Call{}, err
	}

	var resp lifiQuoteResponse
	headers := map[string]string{}
	if q.apiKey != "" {
		headers["x-lifi-api-key"] = q.apiKey
	}
	if _, err := q.client.GetJSON(ctx, q.baseURL+"/quote?"+params.Encode(), headers, &resp); err != nil {
		return Call{}, clierr.Wrap(clierr.CodeExecutionFailed, "fetch route quote", err)
	}
	if resp.TransactionRequest.To == "" {
		return Call{}, clierr.New(clierr.CodeExecutionFailed, "route quote carried no transaction request")
	}

	value := new(big.Int)
	if raw := resp.TransactionRequest.Value; raw != "" {
		if _, ok := value.SetString(raw, 0); !ok {
			return Call{}, clierr.Newf(clierr.CodeExecutionFailed, "route quote value %q is not a number", raw)
		}
	}
	data := common.FromHex(resp.TransactionRequest.Data)
	return Call{
		To:       common.HexToAddress(resp.TransactionRequest.To),
		ValueWei: value,
		Data:     data,
	}, nil
}

func quoteParams(n intent.Normalized, from common.Address) (url.Values, error) {
	v := url.Values{}
	v.Set("fromAddress", from.Hex())
	v.Set("fromAmount", n.Amount().String())
	v.Set("toAddress", n.Recipient().Hex())

	switch t := n.(type) {
	case intent.Swap:
		v.Set("fromChain", strconv.FormatInt(t.ChainID, 10))
		v.Set("toChain", strconv.FormatInt(t.ChainID, 10))
		v.Set("fromToken", t.FromToken.Address)
		v.Set("toToken", t.ToToken.Address)
	case intent.Bridge:
		v.Set("fromChain", strconv.FormatInt(t.FromChainID, 10))
		v.Set("toChain", strconv.FormatInt(t.ToChainID, 10))
		v.Set("fromToken", t.Token.Address)
		v.Set("toToken", t.Token.Address)
	case intent.BridgeSwap:
		v.Set("fromChain", strconv.FormatInt(t.FromChainID, 10))
		v.Set("toChain", strconv.FormatInt(t.ToChainID, 10))
		v.Set("fromToken", t.FromToken.Address)
		v.Set("toToken", t.ToToken.Address)
	default:
		return nil, clierr.Newf(clierr.CodeUnsupportedOperation, "no route for %s intents", n.Kind())
	}
	return v, nil
}
