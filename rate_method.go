package main

import (
	"errors"
	"fmt"

	"pool-registry-importer/abi_instance"
)

// MethodID is a 4-byte function selector.
type MethodID [4]byte

func (m MethodID) IsZero() bool {
	return m == MethodID{}
}

func (m MethodID) String() string {
	return fmt.Sprintf("0x%x", m[:])
}

// Bytes32 left-aligns the selector into the registry's bytes32 argument.
func (m MethodID) Bytes32() [32]byte {
	var out [32]byte
	copy(out[:], m[:])
	return out
}

const (
	WrappedCompound = "cERC20"
	WrappedRen      = "renERC20"
	WrappedYearn    = "yERC20"
)

var (
	ErrUnknownWrappedContract = errors.New("unknown wrapped contract kind")
)

func methodIDOf(name string) MethodID {
	var id MethodID
	copy(id[:], abi_instance.LendingABI.Methods[name].ID)
	return id
}

var (
	// RateMethodIDs maps a wrapped token family to the getter the registry
	// calls to convert a wrapped balance into underlying units.
	RateMethodIDs = map[string]MethodID{
		WrappedCompound: methodIDOf("exchangeRateStored"),   // 0x182df0f5
		WrappedRen:      methodIDOf("exchangeRateCurrent"),  // 0xbd6d894d
		WrappedYearn:    methodIDOf("getPricePerFullShare"), // 0x77c7b8fc
	}
)

// RateMethodID resolves the selector for a wrapped contract kind. An empty
// kind means the pool has no lending wrapper and yields the zero selector.
func RateMethodID(kind string) (MethodID, error) {
	if kind == "" {
		return MethodID{}, nil
	}

	id, ok := RateMethodIDs[kind]
	if !ok {
		return MethodID{}, fmt.Errorf("%w: %q", ErrUnknownWrappedContract, kind)
	}
	return id, nil
}
