package abi_instance

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	PoolABIJson = `[
{"name":"A","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"fee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"initial_A","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"exchange_underlying","type":"function","stateMutability":"nonpayable","inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"},{"name":"min_dy","type":"uint256"}],"outputs":[]}
]`

	ERC20ABIJson = `[
{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

	// LendingABIJson lists the exchange-rate getters of the wrapped token
	// families the registry knows how to query.
	LendingABIJson = `[
{"name":"exchangeRateStored","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"exchangeRateCurrent","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"getPricePerFullShare","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`
)

var (
	PoolABI    *abi.ABI
	ERC20ABI   *abi.ABI
	LendingABI *abi.ABI
)

func init() {
	PoolABI = mustParse(PoolABIJson)
	ERC20ABI = mustParse(ERC20ABIJson)
	LendingABI = mustParse(LendingABIJson)
}
