// Package evm backs the amm.Pool interface with an on-chain constant
// product pair contract over JSON-RPC.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
)

// pairABIJSON covers the read methods the oracle samples.
const pairABIJSON = `
[
	{"constant": true, "inputs": [], "name": "token0", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "token1", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "getReserves", "outputs": [{"name": "reserve0", "type": "uint112"}, {"name": "reserve1", "type": "uint112"}, {"name": "blockTimestampLast", "type": "uint32"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "price0CumulativeLast", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "price1CumulativeLast", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "totalSupply", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// PairClient reads pair state from an EVM node. It implements amm.Pool for
// the oracle and amm.HeadSource for the admission height checks. Token
// identities are resolved once at construction.
type PairClient struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	addr     common.Address
	token0   string
	token1   string
}

// Dial connects to the node and binds the pair contract.
func Dial(ctx context.Context, rpcURL, pairAddress string) (*PairClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm node: %w", err)
	}

	pairABI, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse pair ABI: %w", err)
	}

	addr := common.HexToAddress(pairAddress)
	contract := bind.NewBoundContract(addr, pairABI, client, client, client)

	pc := &PairClient{client: client, contract: contract, addr: addr}
	if pc.token0, err = pc.tokenAddress(ctx, "token0"); err != nil {
		client.Close()
		return nil, err
	}
	if pc.token1, err = pc.tokenAddress(ctx, "token1"); err != nil {
		client.Close()
		return nil, err
	}
	return pc, nil
}

// Close releases the underlying RPC connection.
func (p *PairClient) Close() { p.client.Close() }

// Token0 returns the pair's first token address, hex-encoded.
func (p *PairClient) Token0() string { return p.token0 }

// Token1 returns the pair's second token address, hex-encoded.
func (p *PairClient) Token1() string { return p.token1 }

// Reserves reads getReserves. The pair's blockTimestampLast is a uint32
// seconds counter; it is widened to a time.Time here.
func (p *PairClient) Reserves(ctx context.Context) (math.Int, math.Int, time.Time, error) {
	var raw []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &raw, "getReserves"); err != nil {
		return math.Int{}, math.Int{}, time.Time{}, fmt.Errorf("getReserves: %w", err)
	}
	if len(raw) != 3 {
		return math.Int{}, math.Int{}, time.Time{}, fmt.Errorf("unexpected getReserves return length %d", len(raw))
	}
	r0, err := toBig(raw[0])
	if err != nil {
		return math.Int{}, math.Int{}, time.Time{}, fmt.Errorf("reserve0: %w", err)
	}
	r1, err := toBig(raw[1])
	if err != nil {
		return math.Int{}, math.Int{}, time.Time{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, err := toBig(raw[2])
	if err != nil {
		return math.Int{}, math.Int{}, time.Time{}, fmt.Errorf("blockTimestampLast: %w", err)
	}
	return math.NewIntFromBigInt(r0), math.NewIntFromBigInt(r1), time.Unix(ts.Int64(), 0), nil
}

// CumulativePrice0 reads price0CumulativeLast.
func (p *PairClient) CumulativePrice0(ctx context.Context) (*uint256.Int, error) {
	return p.cumulative(ctx, "price0CumulativeLast")
}

// CumulativePrice1 reads price1CumulativeLast.
func (p *PairClient) CumulativePrice1(ctx context.Context) (*uint256.Int, error) {
	return p.cumulative(ctx, "price1CumulativeLast")
}

// TotalSupply reads the LP token supply.
func (p *PairClient) TotalSupply(ctx context.Context) (math.Int, error) {
	var raw []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &raw, "totalSupply"); err != nil {
		return math.Int{}, fmt.Errorf("totalSupply: %w", err)
	}
	if len(raw) != 1 {
		return math.Int{}, fmt.Errorf("unexpected totalSupply return length %d", len(raw))
	}
	v, err := toBig(raw[0])
	if err != nil {
		return math.Int{}, err
	}
	return math.NewIntFromBigInt(v), nil
}

// Height returns the node's latest block number.
func (p *PairClient) Height(ctx context.Context) (int64, error) {
	n, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return int64(n), nil
}

func (p *PairClient) cumulative(ctx context.Context, method string) (*uint256.Int, error) {
	var raw []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &raw, method); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("unexpected %s return length %d", method, len(raw))
	}
	v, err := toBig(raw[0])
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%s does not fit in 256 bits", method)
	}
	return out, nil
}

func (p *PairClient) tokenAddress(ctx context.Context, method string) (string, error) {
	var raw []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &raw, method); err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	if len(raw) != 1 {
		return "", fmt.Errorf("unexpected %s return length %d", method, len(raw))
	}
	addr, ok := raw[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected %s return type %T", method, raw[0])
	}
	return addr.Hex(), nil
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return big.NewInt(int64(n)), nil
	default:
		return nil, fmt.Errorf("unexpected numeric type %T", v)
	}
}
