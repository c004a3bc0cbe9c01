package main

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type GasPriceSource interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

type GasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

var (
	ErrNoGasPrice = errors.New("no gas price")
)

// GweiToWei parses a decimal gwei amount such as "12.5".
func GweiToWei(gwei string) (*big.Int, error) {
	d, err := decimal.NewFromString(gwei)
	if err != nil {
		return nil, err
	}
	return d.Shift(9).BigInt(), nil
}

// WeiToEther formats wei with four decimals.
func WeiToEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).StringFixed(4)
}

type fixedGasPrice struct {
	price *big.Int
}

func (f *fixedGasPrice) GasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.price), nil
}

type nodeGasPrice struct {
	suggester GasPriceSuggester
	max       *big.Int
	log       *zap.Logger
}

func (n *nodeGasPrice) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := n.suggester.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrNoGasPrice
	}

	if n.max != nil && price.Cmp(n.max) > 0 {
		n.log.Warn("suggested gas price above cap",
			zap.Stringer("suggested", price),
			zap.Stringer("cap", n.max))
		return new(big.Int).Set(n.max), nil
	}
	return price, nil
}

// NewGasPriceSource returns a fixed source when conf.PriceGwei is set and
// otherwise asks the node for every transaction.
func NewGasPriceSource(conf *GasConf, suggester GasPriceSuggester, log *zap.Logger) (GasPriceSource, error) {
	if conf.PriceGwei != "" {
		price, err := GweiToWei(conf.PriceGwei)
		if err != nil {
			return nil, err
		}
		return &fixedGasPrice{price: price}, nil
	}

	var max *big.Int
	if conf.MaxPriceGwei != "" {
		var err error
		if max, err = GweiToWei(conf.MaxPriceGwei); err != nil {
			return nil, err
		}
	}

	return &nodeGasPrice{
		suggester: suggester,
		max:       max,
		log:       log,
	}, nil
}
