package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pool-registry-importer/abi_instance"
)

// Capabilities is what a swap contract exposes that changes how it is
// registered.
type Capabilities struct {
	ExchangeUnderlying bool `json:"exchange_underlying"`
	HasInitialA        bool `json:"has_initial_a"`
}

// ErrNoCode is returned for an address with no deployed contract.
var ErrNoCode = errors.New("no contract code")

type CapabilityProber interface {
	Probe(ctx context.Context, swap common.Address) (Capabilities, error)
}

type codeProber struct {
	reader ethereum.ChainStateReader
	log    *zap.Logger
}

func NewCodeProber(reader ethereum.ChainStateReader, log *zap.Logger) CapabilityProber {
	return &codeProber{
		reader: reader,
		log:    log,
	}
}

var (
	exchangeUnderlyingID = abi_instance.PoolABI.Methods["exchange_underlying"].ID
	initialAID           = abi_instance.PoolABI.Methods["initial_A"].ID
)

const opPush4 = 0x63

// dispatches reports whether the selector appears as a PUSH4 immediate, which
// is how both vyper and solidity dispatchers compare the calldata selector.
func dispatches(code []byte, selector []byte) bool {
	needle := append([]byte{opPush4}, selector...)
	return bytes.Contains(code, needle)
}

func (p *codeProber) Probe(ctx context.Context, swap common.Address) (Capabilities, error) {
	code, err := p.reader.CodeAt(ctx, swap, nil)
	if err != nil {
		return Capabilities{}, err
	}
	if len(code) == 0 {
		return Capabilities{}, fmt.Errorf("%w: %s", ErrNoCode, swap)
	}

	caps := Capabilities{
		ExchangeUnderlying: dispatches(code, exchangeUnderlyingID),
		HasInitialA:        dispatches(code, initialAID),
	}
	p.log.Debug("probed swap contract",
		zap.Stringer("swap", swap),
		zap.Int("codeSize", len(code)),
		zap.Bool("exchangeUnderlying", caps.ExchangeUnderlying),
		zap.Bool("hasInitialA", caps.HasInitialA))
	return caps, nil
}
