package main

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	musd     = addr(0x14)
	threeCRV = addr(0x15)
)

func fixedGas(wei int64) GasPriceSource {
	return &fixedGasPrice{price: big.NewInt(wei)}
}

type failingGas struct{}

func (failingGas) GasPrice(context.Context) (*big.Int, error) {
	return nil, ErrNoGasPrice
}

func compoundRecord() *PoolRecord {
	return &PoolRecord{
		Name:            "compound",
		SwapAddress:     lendingSwap,
		LPTokenAddress:  lendingLP,
		WrappedContract: WrappedCompound,
		LPContract:      LPContractV1,
		Coins: []*Coin{
			{Name: "DAI", Decimals: u8(18), WrappedDecimals: u8(8), UnderlyingAddress: dai, WrappedAddress: cDAI},
			{Name: "USDC", Decimals: u8(6), WrappedDecimals: u8(8), UnderlyingAddress: usdc, WrappedAddress: cUSDC},
		},
		GaugeAddresses: []common.Address{addr(0x300)},
		Kind:           PoolKindUnderlying,
	}
}

func susdRecord() *PoolRecord {
	return &PoolRecord{
		Name:           "susd",
		SwapAddress:    plainSwap,
		LPTokenAddress: plainLP,
		LPContract:     "CurveTokenV2",
		Coins: []*Coin{
			{Name: "DAI", Decimals: u8(18), UnderlyingAddress: dai},
			{Name: "sUSD", Decimals: u8(18), UnderlyingAddress: susd},
		},
		GaugeAddresses: []common.Address{addr(0x301)},
		Kind:           PoolKindPlain,
		HasInitialA:    true,
	}
}

func usdmRecord() *PoolRecord {
	return &PoolRecord{
		Name:           "usdm",
		SwapAddress:    metaSwap,
		LPTokenAddress: addr(0x401),
		BasePool:       "3pool",
		Coins: []*Coin{
			{Name: "mUSD", Decimals: u8(18), UnderlyingAddress: musd},
			{Name: "3Crv", Decimals: u8(18), UnderlyingAddress: threeCRV, BasePoolToken: true},
		},
		Kind: PoolKindMetapool,
	}
}

func importFixture(t *testing.T) (*memChain, *memRegistry, map[string]*PoolRecord) {
	t.Helper()
	chain, registry := lendingFixture(t)
	chain.deployPool(metaSwap, []common.Address{musd, threeCRV}, []common.Address{musd, threeCRV})
	records := map[string]*PoolRecord{
		"compound": compoundRecord(),
		"susd":     susdRecord(),
		"usdm":     usdmRecord(),
	}
	return chain, registry, records
}

func TestImportAllKinds(t *testing.T) {
	ctx := context.Background()
	_, registry, records := importFixture(t)
	metrics := NewMetrics()

	report, err := NewImporter(registry, fixedGas(1e9), metrics, zaptest.NewLogger(t)).Run(ctx, records)
	require.NoError(t, err)
	require.Equal(t, []string{"compound", "susd", "usdm"}, report.Added)
	require.Equal(t, []string{"compound", "susd"}, report.GaugesUpdated)
	require.Equal(t, []string{"usdm"}, report.GaugesCurrent)
	require.Equal(t, 5, report.Transactions)
	require.Equal(t, int64(5*100000*1e9), report.FeesWei.Int64())
	require.Equal(t, []string{
		"add_pool", "set_liquidity_gauges",
		"add_pool_without_underlying", "set_liquidity_gauges",
		"add_metapool",
	}, registry.calls)

	lending := registry.entries[lendingSwap]
	require.Equal(t, [MaxCoins]uint8{8, 8}, UnpackValues(lending.Decimals))
	require.Equal(t, [MaxCoins]uint8{18, 6}, UnpackValues(lending.UnderlyingDecimals))
	require.Equal(t, "0x182df0f5", lending.RateMethodID.String())
	require.Equal(t, addr(0x300), lending.Gauges[0])

	plain := registry.entries[plainSwap]
	require.True(t, plain.RateMethodID.IsZero())
	require.Zero(t, plain.LendingRates.Sign())
	require.Equal(t, [MaxCoins]uint8{18, 18}, UnpackValues(plain.Decimals))

	meta := registry.entries[metaSwap]
	require.True(t, meta.RateMethodID.IsZero())
	require.Equal(t, [MaxGauges]common.Address{}, meta.Gauges)

	info, err := registry.GetPoolInfo(ctx, lendingSwap)
	require.NoError(t, err)
	require.Equal(t, [MaxCoins]uint8{8, 8, 0, 0, 0, 0, 0}, info.Decimals)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.transactions.WithLabelValues("add_pool")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.transactions.WithLabelValues("set_liquidity_gauges")))
	require.Equal(t, float64(3), testutil.ToFloat64(metrics.pools.WithLabelValues(resultAdded)))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.gauges.WithLabelValues(resultUpdated)))
	require.InDelta(t, 0.0005, testutil.ToFloat64(metrics.feesEther), 1e-12)
}

func TestImportRerunIssuesNoTransactions(t *testing.T) {
	ctx := context.Background()
	_, registry, records := importFixture(t)

	_, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).Run(ctx, records)
	require.NoError(t, err)
	sent := len(registry.calls)

	metrics := NewMetrics()
	report, err := NewImporter(registry, fixedGas(1), metrics, zaptest.NewLogger(t)).Run(ctx, records)
	require.NoError(t, err)
	require.Len(t, registry.calls, sent)
	require.Zero(t, report.Transactions)
	require.Empty(t, report.Added)
	require.Equal(t, []string{"compound", "susd", "usdm"}, report.Skipped)
	require.Equal(t, []string{"compound", "susd", "usdm"}, report.GaugesCurrent)
	require.Equal(t, float64(3), testutil.ToFloat64(metrics.pools.WithLabelValues(resultSkipped)))
}

func TestImportUpdatesChangedGauges(t *testing.T) {
	ctx := context.Background()
	_, registry, records := importFixture(t)
	importer := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t))

	_, err := importer.Run(ctx, records)
	require.NoError(t, err)

	records["susd"].GaugeAddresses = []common.Address{addr(0x301), addr(0x302)}
	report, err := importer.Run(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 1, report.Transactions)
	require.Equal(t, []string{"susd"}, report.GaugesUpdated)
	require.Equal(t, "set_liquidity_gauges", registry.calls[len(registry.calls)-1])
	require.Equal(t, addr(0x302), registry.entries[plainSwap].Gauges[1])
}

func TestImportPaddedGaugesMatch(t *testing.T) {
	ctx := context.Background()
	_, registry, _ := importFixture(t)
	record := susdRecord()

	entry, err := EntryFromRecord(record)
	require.NoError(t, err)
	registry.entries[plainSwap] = entry

	report, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).
		Run(ctx, map[string]*PoolRecord{"susd": record})
	require.NoError(t, err)
	require.Zero(t, report.Transactions)
	require.Empty(t, registry.calls)
}

func TestImportTooManyGauges(t *testing.T) {
	_, registry, _ := importFixture(t)
	record := susdRecord()
	record.GaugeAddresses = make([]common.Address, MaxGauges+1)

	_, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).
		Run(context.Background(), map[string]*PoolRecord{"susd": record})
	require.ErrorIs(t, err, ErrTooManyGauges)
	require.Empty(t, registry.calls)
}

func TestImportStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	_, registry, records := importFixture(t)
	rejected := errors.New("execution reverted: dev: only owner")
	registry.failOn["add_pool_without_underlying"] = rejected

	report, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).Run(ctx, records)
	require.ErrorIs(t, err, rejected)
	require.ErrorContains(t, err, "pool susd")
	require.Equal(t, []string{"compound"}, report.Added)

	// earlier pools stay registered, later ones are never reached
	require.Contains(t, registry.entries, lendingSwap)
	require.NotContains(t, registry.entries, metaSwap)

	// a re-run after the fix picks up where the batch stopped
	delete(registry.failOn, "add_pool_without_underlying")
	report, err = NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).Run(ctx, records)
	require.NoError(t, err)
	require.Equal(t, []string{"compound"}, report.Skipped)
	require.Equal(t, []string{"susd", "usdm"}, report.Added)
}

func TestImportCountsRevertedFees(t *testing.T) {
	ctx := context.Background()
	_, registry, records := importFixture(t)
	registry.revertOn["add_pool_without_underlying"] = true
	metrics := NewMetrics()

	report, err := NewImporter(registry, fixedGas(1e9), metrics, zaptest.NewLogger(t)).Run(ctx, records)
	require.ErrorIs(t, err, ErrTransactionReverted)
	require.ErrorContains(t, err, "pool susd")
	require.NotContains(t, registry.entries, plainSwap)

	// add_pool and set_liquidity_gauges for compound, then the reverted one
	require.Equal(t, 3, report.Transactions)
	require.Equal(t, int64(3*100000*1e9), report.FeesWei.Int64())
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.transactions.WithLabelValues("add_pool_without_underlying")))
	require.InDelta(t, 0.0003, testutil.ToFloat64(metrics.feesEther), 1e-12)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unresolved kind", func(t *testing.T) {
		_, registry, _ := importFixture(t)
		record := susdRecord()
		record.Kind = PoolKindUnknown

		_, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).
			Run(ctx, map[string]*PoolRecord{"susd": record})
		require.ErrorIs(t, err, ErrUnresolvedKind)
	})

	t.Run("unknown wrapped contract", func(t *testing.T) {
		_, registry, _ := importFixture(t)
		record := compoundRecord()
		record.WrappedContract = "aERC20"

		_, err := NewImporter(registry, fixedGas(1), NewMetrics(), zaptest.NewLogger(t)).
			Run(ctx, map[string]*PoolRecord{"compound": record})
		require.ErrorIs(t, err, ErrUnknownWrappedContract)
		require.Empty(t, registry.calls)
	})

	t.Run("gas price", func(t *testing.T) {
		_, registry, records := importFixture(t)

		_, err := NewImporter(registry, failingGas{}, NewMetrics(), zaptest.NewLogger(t)).Run(ctx, records)
		require.ErrorIs(t, err, ErrNoGasPrice)
		require.Empty(t, registry.calls)
	})
}
