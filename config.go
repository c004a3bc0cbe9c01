package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type LogConf struct {
	Async         bool `json:"async" yaml:"async"`
	BufferSize    int  `json:"buffer_size" yaml:"buffer_size"`
	FlushInterval int  `json:"flush_interval" yaml:"flush_interval"`
}

type EthRPCConf struct {
	HTTP string `json:"http" yaml:"http"`
}

type RegistryConf struct {
	Address  string `json:"address" yaml:"address"`
	Deployer string `json:"deployer" yaml:"deployer"`
}

// SignerConf selects the signing collaborator. PrivateKeyEnv wins over the keystore.
type SignerConf struct {
	KeystoreDir   string `json:"keystore_dir" yaml:"keystore_dir"`
	PasswordEnv   string `json:"password_env" yaml:"password_env"`
	PrivateKeyEnv string `json:"private_key_env" yaml:"private_key_env"`
}

type MetadataConf struct {
	ListURL     string `json:"list_url" yaml:"list_url"`
	PoolDataURL string `json:"pool_data_url" yaml:"pool_data_url"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	TimeoutSec  int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type GasConf struct {
	// PriceGwei fixes the gas price; empty means ask the node.
	PriceGwei    string `json:"price_gwei" yaml:"price_gwei"`
	MaxPriceGwei string `json:"max_price_gwei" yaml:"max_price_gwei"`
}

type RetryConf struct {
	Attempts uint `json:"attempts" yaml:"attempts"`
	DelayMs  int  `json:"delay_ms" yaml:"delay_ms"`
}

// CacheConf configures the capability cache. An empty RedisAddr keeps it in memory only.
type CacheConf struct {
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `json:"redis_db" yaml:"redis_db"`
	TTLHours  int    `json:"ttl_hours" yaml:"ttl_hours"`
}

type MetricsConf struct {
	Textfile string `json:"textfile" yaml:"textfile"`
}

type Config struct {
	Log      *LogConf      `json:"log" yaml:"log"`
	EthRPC   *EthRPCConf   `json:"eth_rpc" yaml:"eth_rpc"`
	Registry *RegistryConf `json:"registry" yaml:"registry"`
	Signer   *SignerConf   `json:"signer" yaml:"signer"`
	Metadata *MetadataConf `json:"metadata" yaml:"metadata"`
	Gas      *GasConf      `json:"gas" yaml:"gas"`
	Retry    *RetryConf    `json:"retry" yaml:"retry"`
	Cache    *CacheConf    `json:"cache" yaml:"cache"`
	Metrics  *MetricsConf  `json:"metrics" yaml:"metrics"`
}

const (
	GithubPools    = "https://api.github.com/repos/curvefi/curve-contract/contents/contracts/pools"
	GithubPoolData = "https://raw.githubusercontent.com/curvefi/curve-contract/master/contracts/pools/{}/pooldata.json"
)

func DefaultConfig() *Config {
	return &Config{
		Log: &LogConf{
			Async:         false,
			BufferSize:    1024 * 256,
			FlushInterval: 1,
		},
		EthRPC: &EthRPCConf{
			HTTP: "http://127.0.0.1:8545",
		},
		Registry: &RegistryConf{},
		Signer: &SignerConf{
			PasswordEnv:   "DEPLOYER_PASSWORD",
			PrivateKeyEnv: "",
		},
		Metadata: &MetadataConf{
			ListURL:     GithubPools,
			PoolDataURL: GithubPoolData,
			Concurrency: 4,
			TimeoutSec:  30,
		},
		Gas: &GasConf{},
		Retry: &RetryConf{
			Attempts: 3,
			DelayMs:  200,
		},
		Cache: &CacheConf{
			TTLHours: 24 * 7,
		},
		Metrics: &MetricsConf{},
	}
}

var ErrNoRegistry = errors.New("config: registry.address (or --registry) is required")

// LoadConfig reads name over the defaults, applies overrides and validates
// the result. YAML is used for .yaml/.yml files, JSON otherwise. An empty
// name starts from the defaults alone.
func LoadConfig(name string, overrides ...func(*Config) error) (*Config, error) {
	c := DefaultConfig()
	if name != "" {
		if err := decodeConfig(name, c); err != nil {
			return nil, err
		}
	}
	if c.Registry == nil {
		c.Registry = &RegistryConf{}
	}

	for _, override := range overrides {
		if err := override(c); err != nil {
			return nil, err
		}
	}
	return c, c.validate()
}

func decodeConfig(name string, c *Config) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(c)
	default:
		err = json.NewDecoder(file).Decode(c)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", name, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.EthRPC == nil || c.EthRPC.HTTP == "" {
		return errors.New("config: eth_rpc.http is required")
	}
	if c.Registry.Address == "" {
		return ErrNoRegistry
	}
	if !common.IsHexAddress(c.Registry.Address) {
		return errors.New("config: registry.address must be a hex address")
	}
	if c.Registry.Deployer != "" && !common.IsHexAddress(c.Registry.Deployer) {
		return errors.New("config: registry.deployer must be a hex address")
	}
	if c.Metadata == nil || c.Metadata.ListURL == "" || c.Metadata.PoolDataURL == "" {
		return errors.New("config: metadata.list_url and metadata.pool_data_url are required")
	}
	if !strings.Contains(c.Metadata.PoolDataURL, "{}") {
		return errors.New("config: metadata.pool_data_url needs a {} placeholder")
	}
	if c.Metadata.Concurrency < 1 {
		return errors.New("config: metadata.concurrency must be greater than 0")
	}
	if c.Retry == nil || c.Retry.Attempts < 1 {
		return errors.New("config: retry.attempts must be greater than 0")
	}
	if c.Gas == nil {
		c.Gas = &GasConf{}
	}
	for _, s := range []string{c.Gas.PriceGwei, c.Gas.MaxPriceGwei} {
		if s == "" {
			continue
		}
		if _, err := decimal.NewFromString(s); err != nil {
			return fmt.Errorf("config: bad gwei value %q: %w", s, err)
		}
	}
	if c.Log == nil {
		c.Log = DefaultConfig().Log
	}
	if c.Signer == nil {
		c.Signer = &SignerConf{}
	}
	if c.Cache == nil {
		c.Cache = DefaultConfig().Cache
	}
	if c.Cache.TTLHours < 1 {
		return errors.New("config: cache.ttl_hours must be greater than 0")
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConf{}
	}
	return nil
}

func (c *Config) RegistryAddress() common.Address {
	return common.HexToAddress(c.Registry.Address)
}

// DeployerAddress is the zero address when no deployer is configured.
func (c *Config) DeployerAddress() common.Address {
	if c.Registry.Deployer == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Registry.Deployer)
}
