package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"pool-registry-importer/abi_instance"
)

var (
	ErrUnknownPool = errors.New("unknown pool")
)

type AddPoolArgs struct {
	Pool               common.Address
	NCoins             uint64
	LPToken            common.Address
	RateMethodID       MethodID
	Decimals           *big.Int // packed wrapped decimals
	UnderlyingDecimals *big.Int
	HasInitialA        bool
	IsV1               bool
}

type AddPoolWithoutUnderlyingArgs struct {
	Pool         common.Address
	NCoins       uint64
	LPToken      common.Address
	RateMethodID MethodID
	Decimals     *big.Int
	UseRates     *big.Int // packed lending flags
	HasInitialA  bool
	IsV1         bool
}

type AddMetapoolArgs struct {
	Pool     common.Address
	NCoins   uint64
	LPToken  common.Address
	Decimals *big.Int
}

// Registry is the pool registry contract as seen by the importer. Writes
// return the mined receipt, or nil when nothing was submitted.
type Registry interface {
	GetNCoins(ctx context.Context, pool common.Address) (uint64, error)
	GetGauges(ctx context.Context, pool common.Address) ([MaxGauges]common.Address, error)
	GetPoolInfo(ctx context.Context, pool common.Address) (*PoolInfo, error)

	AddPool(ctx context.Context, args *AddPoolArgs, gasPrice *big.Int) (*types.Receipt, error)
	AddPoolWithoutUnderlying(ctx context.Context, args *AddPoolWithoutUnderlyingArgs, gasPrice *big.Int) (*types.Receipt, error)
	AddMetapool(ctx context.Context, args *AddMetapoolArgs, gasPrice *big.Int) (*types.Receipt, error)
	SetLiquidityGauges(ctx context.Context, pool common.Address, gauges [MaxGauges]common.Address, gasPrice *big.Int) (*types.Receipt, error)
}

type registryContract struct {
	address    common.Address
	caller     *ContractCaller
	transactor Transactor
	log        *zap.Logger
}

// NewRegistry binds the registry at address. transactor may be nil for a
// read-only registry; writes then fail with ErrNoTransactor.
func NewRegistry(address common.Address, caller *ContractCaller, transactor Transactor, log *zap.Logger) Registry {
	return &registryContract{
		address:    address,
		caller:     caller,
		transactor: transactor,
		log:        log.With(zap.Stringer("registry", address)),
	}
}

func (r *registryContract) GetNCoins(ctx context.Context, pool common.Address) (uint64, error) {
	out, err := r.caller.Call(ctx, r.address, abi_instance.RegistryABI, "get_n_coins", pool)
	if err != nil {
		return 0, err
	}

	nCoins := *abi.ConvertType(out[0], new([2]*big.Int)).(*[2]*big.Int)
	return nCoins[0].Uint64(), nil
}

func (r *registryContract) GetGauges(ctx context.Context, pool common.Address) ([MaxGauges]common.Address, error) {
	out, err := r.caller.Call(ctx, r.address, abi_instance.RegistryABI, "get_gauges", pool)
	if err != nil {
		return [MaxGauges]common.Address{}, err
	}

	return *abi.ConvertType(out[0], new([MaxGauges]common.Address)).(*[MaxGauges]common.Address), nil
}

func toUint8Array(in [MaxCoins]*big.Int) [MaxCoins]uint8 {
	var out [MaxCoins]uint8
	for i, v := range in {
		out[i] = uint8(v.Uint64())
	}
	return out
}

func (r *registryContract) GetPoolInfo(ctx context.Context, pool common.Address) (*PoolInfo, error) {
	out, err := r.caller.Call(ctx, r.address, abi_instance.RegistryABI, "get_pool_info", pool)
	if err != nil {
		if errors.Is(err, ErrExecutionReverted) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPool, pool)
		}
		return nil, err
	}

	arr := func(i int) [MaxCoins]*big.Int {
		return *abi.ConvertType(out[i], new([MaxCoins]*big.Int)).(*[MaxCoins]*big.Int)
	}

	return &PoolInfo{
		Balances:           arr(0),
		UnderlyingBalances: arr(1),
		Decimals:           toUint8Array(arr(2)),
		UnderlyingDecimals: toUint8Array(arr(3)),
		LPToken:            *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		A:                  *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Fee:                *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
	}, nil
}

var (
	ErrNoTransactor = errors.New("registry has no transactor")
)

func (r *registryContract) transact(ctx context.Context, gasPrice *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	if r.transactor == nil {
		return nil, ErrNoTransactor
	}

	data, err := abi_instance.RegistryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	receipt, err := r.transactor.Transact(ctx, r.address, data, gasPrice)
	if err != nil {
		// a reverted tx still carries a receipt whose gas was paid
		return receipt, fmt.Errorf("%s: %w", method, err)
	}

	r.log.Info("transaction mined",
		zap.String("method", method),
		zap.Stringer("tx", receipt.TxHash),
		zap.Uint64("gasUsed", receipt.GasUsed))
	return receipt, nil
}

func (r *registryContract) AddPool(ctx context.Context, a *AddPoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	return r.transact(ctx, gasPrice, "add_pool",
		a.Pool,
		new(big.Int).SetUint64(a.NCoins),
		a.LPToken,
		a.RateMethodID.Bytes32(),
		a.Decimals,
		a.UnderlyingDecimals,
		a.HasInitialA,
		a.IsV1,
	)
}

func (r *registryContract) AddPoolWithoutUnderlying(ctx context.Context, a *AddPoolWithoutUnderlyingArgs, gasPrice *big.Int) (*types.Receipt, error) {
	return r.transact(ctx, gasPrice, "add_pool_without_underlying",
		a.Pool,
		new(big.Int).SetUint64(a.NCoins),
		a.LPToken,
		a.RateMethodID.Bytes32(),
		a.Decimals,
		a.UseRates,
		a.HasInitialA,
		a.IsV1,
	)
}

func (r *registryContract) AddMetapool(ctx context.Context, a *AddMetapoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	return r.transact(ctx, gasPrice, "add_metapool",
		a.Pool,
		new(big.Int).SetUint64(a.NCoins),
		a.LPToken,
		a.Decimals,
	)
}

func (r *registryContract) SetLiquidityGauges(ctx context.Context, pool common.Address, gauges [MaxGauges]common.Address, gasPrice *big.Int) (*types.Receipt, error) {
	return r.transact(ctx, gasPrice, "set_liquidity_gauges", pool, gauges)
}
