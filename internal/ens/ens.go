package ens

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

// Backend is the minimal contract-read surface the resolver needs; the
// RPC fallback client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// registryAddress is the ENS registry, identical on mainnet and the
// major testnets that support ENS.
var registryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const registryABI = `[
	{"name":"resolver","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

const resolverABI = `[
	{"name":"addr","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	parsedRegistryABI = mustABI(registryABI)
	parsedResolverABI = mustABI(resolverABI)
)

// Resolver resolves ENS-style names to addresses through registry and
// resolver contract reads on a single chain (normally mainnet).
type Resolver struct {
	backend Backend
}

func NewResolver(backend Backend) *Resolver {
	return &Resolver{backend: backend}
}

// IsName reports whether the input looks like a name-service
// identifier rather than a hex address.
func IsName(input string) bool {
	v := strings.TrimSpace(input)
	if v == "" || strings.HasPrefix(v, "0x") {
		return false
	}
	dot := strings.LastIndex(v, ".")
	return dot > 0 && dot < len(v)-1
}

// Resolve maps a name to its address. Any failure (no resolver, zero
// address record, RPC trouble) is a hard ENS_RESOLUTION_FAILED; the
// caller must never fall back silently.
func (r *Resolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)

	resolverAddr, err := r.readAddress(ctx, registryAddress, parsedRegistryABI, "resolver", node)
	if err != nil {
		return common.Address{}, clierr.Wrap(clierr.CodeEnsResolutionFailed, "look up resolver for "+name, err)
	}
	if resolverAddr == (common.Address{}) {
		return common.Address{}, clierr.Newf(clierr.CodeEnsResolutionFailed, "name %q has no resolver", name)
	}

	addr, err := r.readAddress(ctx, resolverAddr, parsedResolverABI, "addr", node)
	if err != nil {
		return common.Address{}, clierr.Wrap(clierr.CodeEnsResolutionFailed, "resolve address for "+name, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, clierr.Newf(clierr.CodeEnsResolutionFailed, "name %q has no address record", name)
	}
	return addr, nil
}

func (r *Resolver) readAddress(ctx context.Context, target common.Address, parsed abi.ABI, method string, node [32]byte) (common.Address, error) {
	data, err := parsed.Pack(method, node)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	values, err := parsed.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return common.Address{}, clierr.New(clierr.CodeEnsResolutionFailed, "malformed resolver response")
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, clierr.New(clierr.CodeEnsResolutionFailed, "malformed resolver response")
	}
	return addr, nil
}

// Namehash implements the EIP-137 recursive hash over name labels.
func Namehash(name string) [32]byte {
	var node [32]byte
	clean := strings.TrimSpace(strings.ToLower(name))
	if clean == "" {
		return node
	}
	labels := strings.Split(clean, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = [32]byte(crypto.Keccak256(node[:], labelHash))
	}
	return node
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
