package main

import (
	"context"
	"errors"
	"math/big"
	"sort"

	"go.uber.org/zap"
)

// Mismatch is one field where the registry disagrees with the metadata.
type Mismatch struct {
	Pool  string
	Field string
	Want  interface{}
	Got   interface{}
}

// Verify compares the registry's pool info with what each record would
// register. Unregistered pools are reported as a "registered" mismatch.
// Balances are recomputed from chain state through reader and must match
// what the registry reports for the same pool.
func Verify(ctx context.Context, registry Registry, reader PoolStateReader, records map[string]*PoolRecord, log *zap.Logger) ([]Mismatch, error) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []Mismatch
	for _, name := range names {
		record := records[name]
		want, err := EntryFromRecord(record)
		if err != nil {
			return mismatches, err
		}

		info, err := registry.GetPoolInfo(ctx, record.SwapAddress)
		if errors.Is(err, ErrUnknownPool) {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "registered", Want: true, Got: false})
			continue
		}
		if err != nil {
			return mismatches, err
		}

		if d := UnpackValues(want.Decimals); d != info.Decimals {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "decimals", Want: d, Got: info.Decimals})
		}
		if d := UnpackValues(want.UnderlyingDecimals); d != info.UnderlyingDecimals {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "underlying_decimals", Want: d, Got: info.UnderlyingDecimals})
		}
		if want.LPToken != info.LPToken {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "lp_token", Want: want.LPToken, Got: info.LPToken})
		}

		local, err := ComputePoolInfo(ctx, want, reader)
		if err != nil {
			return mismatches, err
		}
		if !balancesEqual(local.Balances, info.Balances) {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "balances", Want: local.Balances, Got: info.Balances})
		}
		if !balancesEqual(local.UnderlyingBalances, info.UnderlyingBalances) {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "underlying_balances", Want: local.UnderlyingBalances, Got: info.UnderlyingBalances})
		}

		gauges, err := registry.GetGauges(ctx, record.SwapAddress)
		if err != nil {
			return mismatches, err
		}
		if gauges != want.Gauges {
			mismatches = append(mismatches, Mismatch{Pool: name, Field: "gauges", Want: want.Gauges, Got: gauges})
		}
	}

	for _, m := range mismatches {
		log.Warn("registry mismatch",
			zap.String("pool", m.Pool),
			zap.String("field", m.Field),
			zap.Any("want", m.Want),
			zap.Any("got", m.Got))
	}
	log.Info("verify finished", zap.Int("pools", len(names)), zap.Int("mismatches", len(mismatches)))
	return mismatches, nil
}

func balancesEqual(a, b [MaxCoins]*big.Int) bool {
	for i := range a {
		x, y := a[i], b[i]
		if x == nil {
			x = new(big.Int)
		}
		if y == nil {
			y = new(big.Int)
		}
		if x.Cmp(y) != 0 {
			return false
		}
	}
	return true
}
