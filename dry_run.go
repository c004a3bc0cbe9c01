package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// dryRunRegistry reads from the wrapped registry and only logs writes.
type dryRunRegistry struct {
	Registry
	log *zap.Logger
}

func NewDryRunRegistry(inner Registry, log *zap.Logger) Registry {
	return &dryRunRegistry{
		Registry: inner,
		log:      log.With(zap.Bool("dryRun", true)),
	}
}

func (d *dryRunRegistry) AddPool(_ context.Context, a *AddPoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	d.log.Info("would call add_pool",
		zap.Stringer("pool", a.Pool),
		zap.Uint64("nCoins", a.NCoins),
		zap.Stringer("lpToken", a.LPToken),
		zap.Stringer("rateMethodID", a.RateMethodID),
		zap.Stringer("decimals", a.Decimals),
		zap.Stringer("underlyingDecimals", a.UnderlyingDecimals),
		zap.Bool("hasInitialA", a.HasInitialA),
		zap.Bool("isV1", a.IsV1),
		zap.Stringer("gasPrice", gasPrice))
	return nil, nil
}

func (d *dryRunRegistry) AddPoolWithoutUnderlying(_ context.Context, a *AddPoolWithoutUnderlyingArgs, gasPrice *big.Int) (*types.Receipt, error) {
	d.log.Info("would call add_pool_without_underlying",
		zap.Stringer("pool", a.Pool),
		zap.Uint64("nCoins", a.NCoins),
		zap.Stringer("lpToken", a.LPToken),
		zap.Stringer("rateMethodID", a.RateMethodID),
		zap.Stringer("decimals", a.Decimals),
		zap.Stringer("useRates", a.UseRates),
		zap.Bool("hasInitialA", a.HasInitialA),
		zap.Bool("isV1", a.IsV1),
		zap.Stringer("gasPrice", gasPrice))
	return nil, nil
}

func (d *dryRunRegistry) AddMetapool(_ context.Context, a *AddMetapoolArgs, gasPrice *big.Int) (*types.Receipt, error) {
	d.log.Info("would call add_metapool",
		zap.Stringer("pool", a.Pool),
		zap.Uint64("nCoins", a.NCoins),
		zap.Stringer("lpToken", a.LPToken),
		zap.Stringer("decimals", a.Decimals),
		zap.Stringer("gasPrice", gasPrice))
	return nil, nil
}

func (d *dryRunRegistry) SetLiquidityGauges(_ context.Context, pool common.Address, gauges [MaxGauges]common.Address, gasPrice *big.Int) (*types.Receipt, error) {
	d.log.Info("would call set_liquidity_gauges",
		zap.Stringer("pool", pool),
		zap.Any("gauges", gauges),
		zap.Stringer("gasPrice", gasPrice))
	return nil, nil
}
