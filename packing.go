package main

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// MaxCoins is the number of coin slots the registry keeps per pool.
	MaxCoins = 7
	// MaxGauges is the fixed length of a pool's gauge list in the registry.
	MaxGauges = 10
)

var (
	ErrTooManyValues = errors.New("too many values to pack")
)

/*
PackValues packs per-coin values into a single uint256 the way the registry
unpacks them: one byte per coin slot, slot 0 in the least significant byte.

	packed = v0 | v1<<8 | v2<<16 | ...

Slots past len(values) stay zero.
*/
func PackValues(values []uint8) (*big.Int, error) {
	if len(values) > MaxCoins {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyValues, len(values), MaxCoins)
	}

	buf := make([]byte, len(values))
	for i, v := range values {
		// big.Int.SetBytes is big endian, the registry layout is low-endian
		buf[len(values)-1-i] = v
	}
	return new(big.Int).SetBytes(buf), nil
}

// PackBools packs one flag per coin slot as a 0/1 byte.
func PackBools(flags []bool) (*big.Int, error) {
	values := make([]uint8, len(flags))
	for i, f := range flags {
		if f {
			values[i] = 1
		}
	}
	return PackValues(values)
}

// UnpackValues is the inverse of PackValues over all MaxCoins slots.
func UnpackValues(packed *big.Int) [MaxCoins]uint8 {
	var out [MaxCoins]uint8
	if packed == nil {
		return out
	}

	b := packed.Bytes()
	for i := 0; i < MaxCoins && i < len(b); i++ {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// UnpackBools is the inverse of PackBools.
func UnpackBools(packed *big.Int) [MaxCoins]bool {
	var out [MaxCoins]bool
	for i, v := range UnpackValues(packed) {
		out[i] = v != 0
	}
	return out
}
