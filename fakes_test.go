package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	errPoolExists   = errors.New("execution reverted: pool exists")
	errInsufficient = errors.New("insufficient balance")
)

func addr(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(n)))
}

type mockPool struct {
	coins      []common.Address
	underlying []common.Address
	fee        *big.Int
	a          *big.Int
}

// memChain holds mock token balances, lending rates and swap parameters.
type memChain struct {
	balances map[common.Address]map[common.Address]*big.Int
	rates    map[common.Address]*big.Int
	pools    map[common.Address]*mockPool
}

func newMemChain() *memChain {
	return &memChain{
		balances: map[common.Address]map[common.Address]*big.Int{},
		rates:    map[common.Address]*big.Int{},
		pools:    map[common.Address]*mockPool{},
	}
}

func (c *memChain) deployPool(swap common.Address, coins, underlying []common.Address) {
	c.pools[swap] = &mockPool{
		coins:      coins,
		underlying: underlying,
		fee:        big.NewInt(4000000),
		a:          big.NewInt(2000),
	}
}

func (c *memChain) balance(token, holder common.Address) *big.Int {
	if c.balances[token] == nil {
		c.balances[token] = map[common.Address]*big.Int{}
	}
	if c.balances[token][holder] == nil {
		c.balances[token][holder] = new(big.Int)
	}
	return c.balances[token][holder]
}

func (c *memChain) mint(token, to common.Address, amount int64) {
	b := c.balance(token, to)
	b.Add(b, big.NewInt(amount))
}

func (c *memChain) transfer(token, from, to common.Address, amount int64) error {
	src := c.balance(token, from)
	v := big.NewInt(amount)
	if src.Cmp(v) < 0 {
		return errInsufficient
	}
	src.Sub(src, v)
	dst := c.balance(token, to)
	dst.Add(dst, v)
	return nil
}

func (c *memChain) BalanceOf(_ context.Context, token, holder common.Address) (*big.Int, error) {
	return new(big.Int).Set(c.balance(token, holder)), nil
}

func (c *memChain) Rate(_ context.Context, token common.Address, _ MethodID) (*big.Int, error) {
	if r, ok := c.rates[token]; ok {
		return new(big.Int).Set(r), nil
	}
	return new(big.Int), nil
}

func (c *memChain) Fee(_ context.Context, pool common.Address) (*big.Int, error) {
	p, ok := c.pools[pool]
	if !ok {
		return nil, ErrExecutionReverted
	}
	return new(big.Int).Set(p.fee), nil
}

func (c *memChain) A(_ context.Context, pool common.Address) (*big.Int, error) {
	p, ok := c.pools[pool]
	if !ok {
		return nil, ErrExecutionReverted
	}
	return new(big.Int).Set(p.a), nil
}

// memRegistry behaves like the registry contract on top of a memChain.
type memRegistry struct {
	chain   *memChain
	entries map[common.Address]*RegistryEntry
	calls   []string
	failOn  map[string]error

	// revertOn methods are mined but revert, leaving state untouched
	revertOn map[string]bool
}

func newMemRegistry(chain *memChain) *memRegistry {
	return &memRegistry{
		chain:    chain,
		entries:  map[common.Address]*RegistryEntry{},
		failOn:   map[string]error{},
		revertOn: map[string]bool{},
	}
}

func (r *memRegistry) GetNCoins(_ context.Context, pool common.Address) (uint64, error) {
	if e, ok := r.entries[pool]; ok {
		return e.NCoins, nil
	}
	return 0, nil
}

func (r *memRegistry) GetGauges(_ context.Context, pool common.Address) ([MaxGauges]common.Address, error) {
	if e, ok := r.entries[pool]; ok {
		return e.Gauges, nil
	}
	return [MaxGauges]common.Address{}, nil
}

func (r *memRegistry) GetPoolInfo(ctx context.Context, pool common.Address) (*PoolInfo, error) {
	return ComputePoolInfo(ctx, r.entries[pool], r.chain)
}

func (r *memRegistry) newEntry(method string, pool common.Address, nCoins uint64, lpToken common.Address) (*RegistryEntry, error) {
	if err := r.failOn[method]; err != nil {
		return nil, err
	}
	if _, ok := r.entries[pool]; ok {
		return nil, errPoolExists
	}
	p, ok := r.chain.pools[pool]
	if !ok {
		return nil, fmt.Errorf("execution reverted: no pool %s", pool)
	}

	e := &RegistryEntry{
		Pool:         pool,
		LPToken:      lpToken,
		NCoins:       nCoins,
		LendingRates: new(big.Int),
	}
	copy(e.Coins[:], p.coins)
	copy(e.UnderlyingCoins[:], p.underlying)
	return e, nil
}

func (r *memRegistry) receipt(method string, gasPrice *big.Int) *types.Receipt {
	r.calls = append(r.calls, method)
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           100000,
		EffectiveGasPrice: new(big.Int).Set(gasPrice),
	}
}

func (r *memRegistry) reverted(method string, gasPrice *big.Int) (*types.Receipt, error) {
	if !r.revertOn[method] {
		return nil, nil
	}
	receipt := r.receipt(method, gasPrice)
	receipt.Status = types.ReceiptStatusFailed
	return receipt, fmt.Errorf("%s: %w", method, ErrTransactionReverted)
}

func (r *memRegistry) AddPool(_ context.Context, a *AddPoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	if receipt, err := r.reverted("add_pool", gasPrice); err != nil {
		return receipt, err
	}
	e, err := r.newEntry("add_pool", a.Pool, a.NCoins, a.LPToken)
	if err != nil {
		return nil, err
	}
	e.Decimals = a.Decimals
	e.UnderlyingDecimals = a.UnderlyingDecimals
	e.RateMethodID = a.RateMethodID

	flags := make([]bool, a.NCoins)
	for i := range flags {
		flags[i] = e.Coins[i] != e.UnderlyingCoins[i]
	}
	e.LendingRates, _ = PackBools(flags)

	r.entries[a.Pool] = e
	return r.receipt("add_pool", gasPrice), nil
}

func (r *memRegistry) AddPoolWithoutUnderlying(_ context.Context, a *AddPoolWithoutUnderlyingArgs, gasPrice *big.Int) (*types.Receipt, error) {
	if receipt, err := r.reverted("add_pool_without_underlying", gasPrice); err != nil {
		return receipt, err
	}
	e, err := r.newEntry("add_pool_without_underlying", a.Pool, a.NCoins, a.LPToken)
	if err != nil {
		return nil, err
	}
	e.Decimals = a.Decimals
	e.UnderlyingDecimals = a.Decimals
	e.RateMethodID = a.RateMethodID
	e.LendingRates = a.UseRates
	e.UnderlyingCoins = e.Coins

	r.entries[a.Pool] = e
	return r.receipt("add_pool_without_underlying", gasPrice), nil
}

func (r *memRegistry) AddMetapool(_ context.Context, a *AddMetapoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	if receipt, err := r.reverted("add_metapool", gasPrice); err != nil {
		return receipt, err
	}
	e, err := r.newEntry("add_metapool", a.Pool, a.NCoins, a.LPToken)
	if err != nil {
		return nil, err
	}
	e.Decimals = a.Decimals
	e.UnderlyingDecimals = a.Decimals
	e.UnderlyingCoins = e.Coins

	r.entries[a.Pool] = e
	return r.receipt("add_metapool", gasPrice), nil
}

func (r *memRegistry) SetLiquidityGauges(_ context.Context, pool common.Address, gauges [MaxGauges]common.Address, gasPrice *big.Int) (*types.Receipt, error) {
	if receipt, err := r.reverted("set_liquidity_gauges", gasPrice); err != nil {
		return receipt, err
	}
	if err := r.failOn["set_liquidity_gauges"]; err != nil {
		return nil, err
	}
	e, ok := r.entries[pool]
	if !ok {
		return nil, fmt.Errorf("execution reverted: unknown pool %s", pool)
	}
	e.Gauges = gauges
	return r.receipt("set_liquidity_gauges", gasPrice), nil
}

var _ Registry = (*memRegistry)(nil)
var _ PoolStateReader = (*memChain)(nil)

func mustPack(t *testing.T, values ...uint8) *big.Int {
	t.Helper()
	packed, err := PackValues(values)
	require.NoError(t, err)
	return packed
}

func requireBigs(t *testing.T, want []int64, got [MaxCoins]*big.Int) {
	t.Helper()
	require.Len(t, want, MaxCoins)
	for i := range want {
		require.NotNil(t, got[i], "slot %d", i)
		require.Zerof(t, got[i].Cmp(big.NewInt(want[i])), "slot %d: want %d, got %s", i, want[i], got[i])
	}
}

func u8(v uint8) *uint8 {
	return &v
}
