package execution

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

const erc20TransferABI = `[
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// accountExecuteABI is the single-call entry point of ERC-4337 simple
// accounts.
const accountExecuteABI = `[
	{"name":"execute","type":"function","stateMutability":"nonpayable","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"outputs":[]}
]`

var (
	parsedERC20ABI   = mustABI(erc20TransferABI)
	parsedAccountABI = mustABI(accountExecuteABI)
)

func packERC20Transfer(to common.Address, units *big.Int) ([]byte, error) {
	data, err := parsedERC20ABI.Pack("transfer", to, units)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack transfer calldata", err)
	}
	return data, nil
}

func packAccountExecute(call Call) ([]byte, error) {
	value := call.ValueWei
	if value == nil {
		value = new(big.Int)
	}
	data := call.Data
	if data == nil {
		data = []byte{}
	}
	packed, err := parsedAccountABI.Pack("execute", call.To, value, data)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack account execute calldata", err)
	}
	return packed, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
