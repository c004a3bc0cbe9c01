package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNoSigner            = errors.New("no signer configured")
	ErrDeployerMismatch    = errors.New("signer does not match deployer")
)

// Transactor submits one transaction at a time from a single identity and
// waits until it is mined.
type Transactor interface {
	From() common.Address
	Transact(ctx context.Context, to common.Address, data []byte, gasPrice *big.Int) (*types.Receipt, error)
}

// TxBackend is the slice of ethclient.Client the transactor needs.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type ethTransactor struct {
	backend      TxBackend
	opts         *bind.TransactOpts
	pollInterval time.Duration
	log          *zap.Logger
}

func NewTransactor(backend TxBackend, opts *bind.TransactOpts, log *zap.Logger) Transactor {
	return &ethTransactor{
		backend:      backend,
		opts:         opts,
		pollInterval: defaultReceiptPollInterval,
		log:          log.With(zap.Stringer("from", opts.From)),
	}
}

func (t *ethTransactor) From() common.Address {
	return t.opts.From
}

func (t *ethTransactor) Transact(ctx context.Context, to common.Address, data []byte, gasPrice *big.Int) (*types.Receipt, error) {
	from := t.opts.From

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})

	signed, err := t.opts.Signer(from, tx)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if err = t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	t.log.Info("transaction sent",
		zap.Stringer("tx", signed.Hash()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
		zap.Stringer("gasPrice", gasPrice))

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, signed.Hash())
	}
	return receipt, nil
}

func (t *ethTransactor) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return retry.DoWithData(func() (*types.Receipt, error) {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				t.log.Warn("receipt lookup failed", zap.Stringer("tx", hash), zap.Error(err))
			}
			return nil, err
		}
		return receipt, nil
	}, infiniteAttempts, retry.Delay(t.pollInterval), fixedDelay, retry.Context(ctx), retry.LastErrorOnly(true))
}

// NewSignerOpts builds the signing collaborator. A private key from the
// environment is used when configured, otherwise the deployer account is
// unlocked from the keystore.
func NewSignerOpts(conf *SignerConf, deployer common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if conf.PrivateKeyEnv != "" {
		hexKey := strings.TrimPrefix(os.Getenv(conf.PrivateKeyEnv), "0x")
		if hexKey == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrNoSigner, conf.PrivateKeyEnv)
		}
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return keyedOpts(key, deployer, chainID)
	}

	if conf.KeystoreDir == "" || deployer == (common.Address{}) {
		return nil, fmt.Errorf("%w: need signer.keystore_dir and a deployer address", ErrNoSigner)
	}

	ks := keystore.NewKeyStore(conf.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.Find(accounts.Account{Address: deployer})
	if err != nil {
		return nil, fmt.Errorf("find deployer %s: %w", deployer, err)
	}
	if err = ks.Unlock(account, os.Getenv(conf.PasswordEnv)); err != nil {
		return nil, fmt.Errorf("unlock deployer %s: %w", deployer, err)
	}
	return bind.NewKeyStoreTransactorWithChainID(ks, account, chainID)
}

func keyedOpts(key *ecdsa.PrivateKey, deployer common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	if deployer != (common.Address{}) && opts.From != deployer {
		return nil, fmt.Errorf("%w: %s != %s", ErrDeployerMismatch, opts.From, deployer)
	}
	return opts, nil
}
