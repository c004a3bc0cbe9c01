package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind selects which registry call a pool is registered through. It is
// resolved once, when the pool metadata is fetched.
type PoolKind int

const (
	PoolKindUnknown PoolKind = iota
	PoolKindPlain
	PoolKindUnderlying
	PoolKindMetapool
)

func (k PoolKind) String() string {
	switch k {
	case PoolKindPlain:
		return "plain"
	case PoolKindUnderlying:
		return "underlying"
	case PoolKindMetapool:
		return "metapool"
	default:
		return "unknown"
	}
}

const (
	LPContractV1 = "CurveTokenV1"
)

var (
	ErrTooManyGauges   = errors.New("too many gauges")
	ErrMissingDecimals = errors.New("coin has no decimals")
	ErrInvalidRecord   = errors.New("invalid pool record")
)

// Coin is one entry of a pool's "coins" list in pooldata.json.
type Coin struct {
	Name              string         `json:"name"`
	Decimals          *uint8         `json:"decimals,omitempty"`
	WrappedDecimals   *uint8         `json:"wrapped_decimals,omitempty"`
	UnderlyingAddress common.Address `json:"underlying_address"`
	WrappedAddress    common.Address `json:"wrapped_address"`
	BasePoolToken     bool           `json:"base_pool_token,omitempty"`
}

// IsWrapped reports whether the coin is a lending wrapper over an underlying asset.
func (c *Coin) IsWrapped() bool {
	return c.WrappedDecimals != nil
}

func (c *Coin) underlyingDecimals() (uint8, error) {
	if c.Decimals != nil {
		return *c.Decimals, nil
	}
	if c.WrappedDecimals != nil {
		return *c.WrappedDecimals, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingDecimals, c.Name)
}

func (c *Coin) wrappedDecimals() (uint8, error) {
	if c.WrappedDecimals != nil {
		return *c.WrappedDecimals, nil
	}
	if c.Decimals != nil {
		return *c.Decimals, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingDecimals, c.Name)
}

// Address is the token the swap contract actually holds for this coin.
func (c *Coin) Address() common.Address {
	if c.IsWrapped() && c.WrappedAddress != (common.Address{}) {
		return c.WrappedAddress
	}
	return c.UnderlyingAddress
}

// PoolRecord describes one pool as published in the upstream pooldata.json.
type PoolRecord struct {
	Name            string           `json:"-"`
	SwapAddress     common.Address   `json:"swap_address"`
	LPTokenAddress  common.Address   `json:"lp_token_address"`
	Coins           []*Coin          `json:"coins"`
	BasePool        string           `json:"base_pool,omitempty"`
	GaugeAddresses  []common.Address `json:"gauge_addresses"`
	LPContract      string           `json:"lp_contract"`
	WrappedContract string           `json:"wrapped_contract,omitempty"`

	Kind        PoolKind `json:"-"`
	HasInitialA bool     `json:"-"`
}

func (r *PoolRecord) validate() error {
	if r.SwapAddress == (common.Address{}) {
		return fmt.Errorf("%w: %s: swap_address is required", ErrInvalidRecord, r.Name)
	}
	if len(r.Coins) == 0 || len(r.Coins) > MaxCoins {
		return fmt.Errorf("%w: %s: %d coins", ErrInvalidRecord, r.Name, len(r.Coins))
	}
	if len(r.GaugeAddresses) > MaxGauges {
		return fmt.Errorf("%w: %s: %d", ErrTooManyGauges, r.Name, len(r.GaugeAddresses))
	}
	return nil
}

func (r *PoolRecord) IsMetapool() bool {
	return r.BasePool != ""
}

func (r *PoolRecord) IsV1() bool {
	return r.LPContract == LPContractV1
}

func (r *PoolRecord) NCoins() int {
	return len(r.Coins)
}

func (r *PoolRecord) collect(f func(c *Coin) (uint8, error)) ([]uint8, error) {
	values := make([]uint8, 0, len(r.Coins))
	for _, c := range r.Coins {
		v, err := f(c)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// UnderlyingDecimals returns per-coin decimals, falling back to the wrapped
// decimals for coins that only declare those.
func (r *PoolRecord) UnderlyingDecimals() ([]uint8, error) {
	return r.collect((*Coin).underlyingDecimals)
}

// WrappedDecimals returns per-coin wrapped decimals, falling back to the
// plain decimals for coins without a lending wrapper.
func (r *PoolRecord) WrappedDecimals() ([]uint8, error) {
	return r.collect((*Coin).wrappedDecimals)
}

// LendingFlags marks the coins whose balances go through a lending rate.
func (r *PoolRecord) LendingFlags() []bool {
	flags := make([]bool, len(r.Coins))
	for i, c := range r.Coins {
		flags[i] = c.IsWrapped()
	}
	return flags
}

func (r *PoolRecord) RateMethodID() (MethodID, error) {
	return RateMethodID(r.WrappedContract)
}

// PaddedGauges returns the gauge list padded with the zero address to the
// registry's fixed length.
func (r *PoolRecord) PaddedGauges() ([MaxGauges]common.Address, error) {
	return PadGauges(r.GaugeAddresses)
}

func PadGauges(gauges []common.Address) ([MaxGauges]common.Address, error) {
	var out [MaxGauges]common.Address
	if len(gauges) > MaxGauges {
		return out, fmt.Errorf("%w: %d > %d", ErrTooManyGauges, len(gauges), MaxGauges)
	}
	copy(out[:], gauges)
	return out, nil
}

// resolveKind fixes the registration variant. caps is ignored for metapools.
func (r *PoolRecord) resolveKind(caps Capabilities) {
	r.HasInitialA = caps.HasInitialA
	switch {
	case r.IsMetapool():
		r.Kind = PoolKindMetapool
	case caps.ExchangeUnderlying:
		r.Kind = PoolKindUnderlying
	default:
		r.Kind = PoolKindPlain
	}
}
