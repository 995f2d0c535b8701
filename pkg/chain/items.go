package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceOf returns how many items owner holds.
func (c *Client) BalanceOf(ctx context.Context, owner string) (uint64, error) {
	if !common.IsHexAddress(owner) {
		return 0, fmt.Errorf("invalid owner %q", owner)
	}
	v, err := c.call(ctx, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("balanceOf overflow: %s", v)
	}
	return v.Uint64(), nil
}

// TokenOfOwnerByIndex returns the id of owner's item at index.
func (c *Client) TokenOfOwnerByIndex(ctx context.Context, owner string, index uint64) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner %q", owner)
	}
	return c.call(ctx, "tokenOfOwnerByIndex", common.HexToAddress(owner), new(big.Int).SetUint64(index))
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.contract
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("%s: unexpected %d outputs", method, len(vals))
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, vals[0])
	}
	return v, nil
}
