package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	ErrUnresolvedKind = errors.New("pool kind not resolved")
)

const (
	resultAdded   = "added"
	resultSkipped = "skipped"
	resultUpdated = "updated"
	resultCurrent = "current"
)

// Report summarises one import run. On error it covers the pools processed
// before the failure.
type Report struct {
	Added         []string
	Skipped       []string
	GaugesUpdated []string
	GaugesCurrent []string
	Transactions  int
	FeesWei       *big.Int
}

/*
Importer registers pools and reconciles their gauges, one transaction at a
time. For every record:

	if registry.get_n_coins(pool) == 0 {
		add the pool through the variant its kind selects
	}
	if registry.get_gauges(pool) != padded(record.gauges) {
		registry.set_liquidity_gauges(pool, padded(record.gauges))
	}

Re-running is safe: registered pools are skipped and gauges are only written
when they differ. A failing pool aborts the run; pools before it stay
registered and nothing is rolled back.
*/
type Importer struct {
	registry Registry
	gasPrice GasPriceSource
	metrics  *Metrics
	log      *zap.Logger
}

func NewImporter(registry Registry, gasPrice GasPriceSource, metrics *Metrics, log *zap.Logger) *Importer {
	return &Importer{
		registry: registry,
		gasPrice: gasPrice,
		metrics:  metrics,
		log:      log,
	}
}

func (im *Importer) Run(ctx context.Context, records map[string]*PoolRecord) (*Report, error) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{FeesWei: new(big.Int)}
	im.log.Info("adding pools to registry", zap.Int("pools", len(names)))

	for _, name := range names {
		if err := im.importPool(ctx, name, records[name], report); err != nil {
			return report, fmt.Errorf("pool %s: %w", name, err)
		}
	}

	im.log.Info("import finished",
		zap.Int("added", len(report.Added)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("gaugesUpdated", len(report.GaugesUpdated)),
		zap.Int("transactions", report.Transactions),
		zap.String("feesEth", WeiToEther(report.FeesWei)))
	return report, nil
}

func (im *Importer) importPool(ctx context.Context, name string, record *PoolRecord, report *Report) error {
	log := im.log.With(zap.String("pool", name), zap.Stringer("swap", record.SwapAddress))

	desired, err := record.PaddedGauges()
	if err != nil {
		return err
	}

	nCoins, err := im.registry.GetNCoins(ctx, record.SwapAddress)
	if err != nil {
		return err
	}

	if nCoins == 0 {
		log.Info("adding pool", zap.Stringer("kind", record.Kind))
		if err = im.addPool(ctx, record, report); err != nil {
			return err
		}
		report.Added = append(report.Added, name)
		im.metrics.observePool(resultAdded)
	} else {
		log.Info("pool has already been added to registry", zap.Uint64("nCoins", nCoins))
		report.Skipped = append(report.Skipped, name)
		im.metrics.observePool(resultSkipped)
	}

	updated, err := im.syncGauges(ctx, record, desired, report)
	if err != nil {
		return err
	}
	if updated {
		log.Info("gauges updated")
		report.GaugesUpdated = append(report.GaugesUpdated, name)
		im.metrics.observeGauges(resultUpdated)
	} else {
		log.Info("gauges are up-to-date")
		report.GaugesCurrent = append(report.GaugesCurrent, name)
		im.metrics.observeGauges(resultCurrent)
	}
	return nil
}

func (im *Importer) submit(ctx context.Context, method string, report *Report, send func(gasPrice *big.Int) (*types.Receipt, error)) error {
	gasPrice, err := im.gasPrice.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	receipt, err := send(gasPrice)
	if err != nil && receipt == nil {
		return err
	}

	var fee *big.Int
	if receipt != nil {
		price := receipt.EffectiveGasPrice
		if price == nil {
			price = gasPrice
		}
		fee = new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
		report.FeesWei.Add(report.FeesWei, fee)
	}
	report.Transactions++
	im.metrics.observeTx(method, fee)
	return err
}

func (im *Importer) addPool(ctx context.Context, record *PoolRecord, report *Report) error {
	nCoins := uint64(record.NCoins())

	decimals, err := record.UnderlyingDecimals()
	if err != nil {
		return err
	}
	packedDecimals, err := PackValues(decimals)
	if err != nil {
		return err
	}

	if record.Kind == PoolKindMetapool {
		args := &AddMetapoolArgs{
			Pool:     record.SwapAddress,
			NCoins:   nCoins,
			LPToken:  record.LPTokenAddress,
			Decimals: packedDecimals,
		}
		return im.submit(ctx, "add_metapool", report, func(gasPrice *big.Int) (*types.Receipt, error) {
			return im.registry.AddMetapool(ctx, args, gasPrice)
		})
	}

	rateMethodID, err := record.RateMethodID()
	if err != nil {
		return err
	}

	switch record.Kind {
	case PoolKindUnderlying:
		wrapped, err := record.WrappedDecimals()
		if err != nil {
			return err
		}
		packedWrapped, err := PackValues(wrapped)
		if err != nil {
			return err
		}

		args := &AddPoolArgs{
			Pool:               record.SwapAddress,
			NCoins:             nCoins,
			LPToken:            record.LPTokenAddress,
			RateMethodID:       rateMethodID,
			Decimals:           packedWrapped,
			UnderlyingDecimals: packedDecimals,
			HasInitialA:        record.HasInitialA,
			IsV1:               record.IsV1(),
		}
		return im.submit(ctx, "add_pool", report, func(gasPrice *big.Int) (*types.Receipt, error) {
			return im.registry.AddPool(ctx, args, gasPrice)
		})

	case PoolKindPlain:
		useRates, err := PackBools(record.LendingFlags())
		if err != nil {
			return err
		}

		args := &AddPoolWithoutUnderlyingArgs{
			Pool:         record.SwapAddress,
			NCoins:       nCoins,
			LPToken:      record.LPTokenAddress,
			RateMethodID: rateMethodID,
			Decimals:     packedDecimals,
			UseRates:     useRates,
			HasInitialA:  record.HasInitialA,
			IsV1:         record.IsV1(),
		}
		return im.submit(ctx, "add_pool_without_underlying", report, func(gasPrice *big.Int) (*types.Receipt, error) {
			return im.registry.AddPoolWithoutUnderlying(ctx, args, gasPrice)
		})

	default:
		return fmt.Errorf("%w: %s", ErrUnresolvedKind, record.Kind)
	}
}

// syncGauges writes desired when it differs from the registry's gauge list
// and reports whether a transaction was issued.
func (im *Importer) syncGauges(ctx context.Context, record *PoolRecord, desired [MaxGauges]common.Address, report *Report) (bool, error) {
	current, err := im.registry.GetGauges(ctx, record.SwapAddress)
	if err != nil {
		return false, err
	}
	if current == desired {
		return false, nil
	}

	err = im.submit(ctx, "set_liquidity_gauges", report, func(gasPrice *big.Int) (*types.Receipt, error) {
		return im.registry.SetLiquidityGauges(ctx, record.SwapAddress, desired, gasPrice)
	})
	return err == nil, err
}
