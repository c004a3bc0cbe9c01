package abi_instance

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	RegistryABIJson = `[
{"name":"add_pool","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_pool","type":"address"},{"name":"_n_coins","type":"uint256"},{"name":"_lp_token","type":"address"},{"name":"_rate_method_id","type":"bytes32"},{"name":"_decimals","type":"uint256"},{"name":"_underlying_decimals","type":"uint256"},{"name":"_has_initial_A","type":"bool"},{"name":"_is_v1","type":"bool"}],"outputs":[]},
{"name":"add_pool_without_underlying","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_pool","type":"address"},{"name":"_n_coins","type":"uint256"},{"name":"_lp_token","type":"address"},{"name":"_rate_method_id","type":"bytes32"},{"name":"_decimals","type":"uint256"},{"name":"_use_rates","type":"uint256"},{"name":"_has_initial_A","type":"bool"},{"name":"_is_v1","type":"bool"}],"outputs":[]},
{"name":"add_metapool","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_pool","type":"address"},{"name":"_n_coins","type":"uint256"},{"name":"_lp_token","type":"address"},{"name":"_decimals","type":"uint256"}],"outputs":[]},
{"name":"set_liquidity_gauges","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_pool","type":"address"},{"name":"_liquidity_gauges","type":"address[10]"}],"outputs":[]},
{"name":"get_n_coins","type":"function","stateMutability":"view","inputs":[{"name":"_pool","type":"address"}],"outputs":[{"name":"","type":"uint256[2]"}]},
{"name":"get_gauges","type":"function","stateMutability":"view","inputs":[{"name":"_pool","type":"address"}],"outputs":[{"name":"","type":"address[10]"},{"name":"","type":"int128[10]"}]},
{"name":"get_pool_info","type":"function","stateMutability":"view","inputs":[{"name":"_pool","type":"address"}],"outputs":[{"name":"balances","type":"uint256[7]"},{"name":"underlying_balances","type":"uint256[7]"},{"name":"decimals","type":"uint256[7]"},{"name":"underlying_decimals","type":"uint256[7]"},{"name":"lp_token","type":"address"},{"name":"A","type":"uint256"},{"name":"fee","type":"uint256"}]}
]`
)

var (
	RegistryABI *abi.ABI
)

func mustParse(j string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(j))
	if err != nil {
		panic(err)
	}
	return &parsed
}

func init() {
	RegistryABI = mustParse(RegistryABIJson)
}
