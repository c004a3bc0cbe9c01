package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"pool-registry-importer/abi_instance"
)

// PoolInfo is the registry's read-side snapshot of one pool. Every array has
// MaxCoins slots; slots past the pool's coin count are zero.
type PoolInfo struct {
	Balances           [MaxCoins]*big.Int `json:"balances"`
	UnderlyingBalances [MaxCoins]*big.Int `json:"underlying_balances"`
	Decimals           [MaxCoins]uint8    `json:"decimals"`
	UnderlyingDecimals [MaxCoins]uint8    `json:"underlying_decimals"`
	LPToken            common.Address     `json:"lp_token"`
	A                  *big.Int           `json:"A"`
	Fee                *big.Int           `json:"fee"`
}

// RegistryEntry is what the registry stores for a pool once it is added.
// A zero NCoins means the pool is absent.
type RegistryEntry struct {
	Pool               common.Address
	LPToken            common.Address
	NCoins             uint64
	Coins              [MaxCoins]common.Address
	UnderlyingCoins    [MaxCoins]common.Address
	Decimals           *big.Int
	UnderlyingDecimals *big.Int
	RateMethodID       MethodID
	LendingRates       *big.Int
	Gauges             [MaxGauges]common.Address
}

// PoolStateReader reads the live state the registry derives pool info from.
type PoolStateReader interface {
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Rate(ctx context.Context, token common.Address, method MethodID) (*big.Int, error)
	Fee(ctx context.Context, pool common.Address) (*big.Int, error)
	A(ctx context.Context, pool common.Address) (*big.Int, error)
}

var (
	rateDenominator = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// ComputePoolInfo evaluates the registry's get_pool_info for entry.
//
// Raw balances are the tokens the swap contract holds. For a coin flagged as
// lending, the underlying balance is the wrapped balance converted at the
// coin's current rate (scaled by 1e18) plus any underlying token held
// directly. Other coins report the raw balance as underlying.
func ComputePoolInfo(ctx context.Context, entry *RegistryEntry, reader PoolStateReader) (*PoolInfo, error) {
	if entry == nil || entry.NCoins == 0 {
		return nil, ErrUnknownPool
	}

	info := &PoolInfo{
		Decimals:           UnpackValues(entry.Decimals),
		UnderlyingDecimals: UnpackValues(entry.UnderlyingDecimals),
		LPToken:            entry.LPToken,
	}
	if entry.UnderlyingDecimals == nil {
		info.UnderlyingDecimals = info.Decimals
	}

	lending := UnpackBools(entry.LendingRates)
	for i := 0; i < MaxCoins; i++ {
		info.Balances[i] = new(big.Int)
		info.UnderlyingBalances[i] = new(big.Int)
		if uint64(i) >= entry.NCoins {
			continue
		}

		coin := entry.Coins[i]
		balance, err := balanceOf(ctx, reader, coin, entry.Pool)
		if err != nil {
			return nil, err
		}
		info.Balances[i] = balance

		if !lending[i] || entry.RateMethodID.IsZero() {
			info.UnderlyingBalances[i] = new(big.Int).Set(balance)
			continue
		}

		rate, err := reader.Rate(ctx, coin, entry.RateMethodID)
		if err != nil {
			return nil, fmt.Errorf("rate of coin %d (%s): %w", i, coin, err)
		}
		underlying := new(big.Int).Mul(balance, rate)
		underlying.Quo(underlying, rateDenominator)

		if u := entry.UnderlyingCoins[i]; u != coin {
			held, err := balanceOf(ctx, reader, u, entry.Pool)
			if err != nil {
				return nil, err
			}
			underlying.Add(underlying, held)
		}
		info.UnderlyingBalances[i] = underlying
	}

	var err error
	if info.Fee, err = reader.Fee(ctx, entry.Pool); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if info.A, err = reader.A(ctx, entry.Pool); err != nil {
		return nil, fmt.Errorf("A: %w", err)
	}
	return info, nil
}

func balanceOf(ctx context.Context, reader PoolStateReader, token, holder common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		return new(big.Int), nil
	}
	balance, err := reader.BalanceOf(ctx, token, holder)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token, err)
	}
	return balance, nil
}

// EntryFromRecord builds the entry the registry holds after record is
// registered through the variant its Kind selects.
func EntryFromRecord(record *PoolRecord) (*RegistryEntry, error) {
	underlyingDecimals, err := record.UnderlyingDecimals()
	if err != nil {
		return nil, err
	}
	packedUnderlying, err := PackValues(underlyingDecimals)
	if err != nil {
		return nil, err
	}

	entry := &RegistryEntry{
		Pool:               record.SwapAddress,
		LPToken:            record.LPTokenAddress,
		NCoins:             uint64(record.NCoins()),
		Decimals:           packedUnderlying,
		UnderlyingDecimals: packedUnderlying,
		LendingRates:       new(big.Int),
	}
	entry.Gauges, err = record.PaddedGauges()
	if err != nil {
		return nil, err
	}
	for i, c := range record.Coins {
		entry.Coins[i] = c.Address()
		entry.UnderlyingCoins[i] = c.UnderlyingAddress
	}

	if record.Kind == PoolKindMetapool {
		return entry, nil
	}

	if entry.RateMethodID, err = record.RateMethodID(); err != nil {
		return nil, err
	}
	if entry.LendingRates, err = PackBools(record.LendingFlags()); err != nil {
		return nil, err
	}

	if record.Kind == PoolKindUnderlying {
		wrapped, err := record.WrappedDecimals()
		if err != nil {
			return nil, err
		}
		if entry.Decimals, err = PackValues(wrapped); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

type chainStateReader struct {
	caller *ContractCaller
}

func NewPoolStateReader(caller *ContractCaller) PoolStateReader {
	return &chainStateReader{caller: caller}
}

func (r *chainStateReader) uint256(ctx context.Context, to common.Address, contractABI *abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return r.raw(ctx, to, data)
}

func (r *chainStateReader) raw(ctx context.Context, to common.Address, data []byte) (*big.Int, error) {
	out, err := r.caller.CallRaw(ctx, to, data)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, ErrEmptyOutput
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

func (r *chainStateReader) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return r.uint256(ctx, token, abi_instance.ERC20ABI, "balanceOf", holder)
}

func (r *chainStateReader) Rate(ctx context.Context, token common.Address, method MethodID) (*big.Int, error) {
	return r.raw(ctx, token, method[:])
}

func (r *chainStateReader) Fee(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.uint256(ctx, pool, abi_instance.PoolABI, "fee")
}

func (r *chainStateReader) A(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.uint256(ctx, pool, abi_instance.PoolABI, "A")
}
