// Package chain reads constant-product pool state over Ethereum JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/avelez/dexscan/internal/domain"
)

// pairABIJSON covers the three view functions of a Uniswap-V2-style pair
// contract that the scanner needs.
const pairABIJSON = `[
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// Client implements domain.PoolStateSource against a JSON-RPC endpoint.
type Client struct {
	ec      *ethclient.Client
	pairABI abi.ABI
	timeout time.Duration
}

// New dials the given JSON-RPC endpoint and returns a Client. timeout bounds
// each PoolState call; zero means no per-call deadline beyond the caller's
// context.
func New(ctx context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain: parse pair abi: %w", err)
	}

	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	return &Client{ec: ec, pairABI: parsed, timeout: timeout}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// PoolState fetches token identities and reserves for the pair contract at
// pairAddress. The three calls are issued concurrently; any failure fails
// the whole read.
func (c *Client) PoolState(ctx context.Context, pairAddress string) (domain.PoolState, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	addr := common.HexToAddress(pairAddress)

	var (
		token0, token1     common.Address
		reserve0, reserve1 *big.Int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		token0, err = c.tokenAt(ctx, addr, "token0")
		return err
	})
	g.Go(func() error {
		var err error
		token1, err = c.tokenAt(ctx, addr, "token1")
		return err
	})
	g.Go(func() error {
		var err error
		reserve0, reserve1, err = c.reserves(ctx, addr)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PoolState{}, fmt.Errorf("chain: pool state %s: %w", pairAddress, err)
	}

	r0, _ := new(big.Float).SetInt(reserve0).Float64()
	r1, _ := new(big.Float).SetInt(reserve1).Float64()
	return domain.PoolState{
		Token0:   token0.Hex(),
		Token1:   token1.Hex(),
		Reserve0: r0,
		Reserve1: r1,
	}, nil
}

// tokenAt calls one of the token0/token1 view functions.
func (c *Client) tokenAt(ctx context.Context, pair common.Address, method string) (common.Address, error) {
	out, err := c.view(ctx, pair, method)
	if err != nil {
		return common.Address{}, err
	}
	token, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return token, nil
}

// reserves calls getReserves and returns the two raw reserve values. The
// trailing blockTimestampLast field is ignored.
func (c *Client) reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	out, err := c.view(ctx, pair, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("getReserves: unexpected return types %T, %T", out[0], out[1])
	}
	return r0, r1, nil
}

// view performs one eth_call against the pair contract and unpacks the
// result.
func (c *Client) view(ctx context.Context, pair common.Address, method string) ([]any, error) {
	data, err := c.pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("call %s: empty result (not a pair contract?)", method)
	}

	out, err := c.pairABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: no return values", method)
	}
	return out, nil
}
