package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrEmptyOutput        = errors.New("empty output")
	ErrExecutionReverted  = errors.New("execution reverted")
	ErrUnknownContractABI = errors.New("method not in abi")
)

func IsRetryableErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errMsg := err.Error()
	if strings.Contains(errMsg, "execution reverted") ||
		strings.Contains(errMsg, "out of gas") ||
		strings.Contains(errMsg, "abi: cannot marshal in to go slice") {
		return false
	}
	return true
}

// ContractCaller does read-only calls against a contract ABI.
type ContractCaller struct {
	caller ethereum.ContractCaller
	retry  []retry.Option
	log    *zap.Logger
}

func NewContractCaller(caller ethereum.ContractCaller, retryOpts []retry.Option, log *zap.Logger) *ContractCaller {
	return &ContractCaller{
		caller: caller,
		retry:  retryOpts,
		log:    log,
	}
}

func (c *ContractCaller) callContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	bytes, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		if IsRetryableErr(err) {
			return nil, err
		}
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, retry.Unrecoverable(fmt.Errorf("%w: %s", ErrExecutionReverted, err.Error()))
		}
		return nil, retry.Unrecoverable(err)
	}
	return bytes, nil
}

// CallRaw sends raw calldata and returns the raw output. Reverts are never retried.
func (c *ContractCaller) CallRaw(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}

	opts := append([]retry.Option{retry.Context(ctx), retry.LastErrorOnly(true)}, c.retry...)
	return retry.DoWithData(func() ([]byte, error) {
		return c.callContract(ctx, msg)
	}, opts...)
}

// Call packs method with args, calls it and returns the unpacked outputs.
func (c *ContractCaller) Call(ctx context.Context, to common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContractABI, method)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	c.log.Debug("call contract", zap.Stringer("to", to), zap.String("method", method))
	bytes, err := c.CallRaw(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	if len(bytes) == 0 && len(m.Outputs) > 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrEmptyOutput)
	}

	return m.Outputs.Unpack(bytes)
}
