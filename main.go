package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		Log.Error("command failed", zap.Error(err))
		_ = Log.Sync()
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
	cfg        *Config
	flush      func()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "pool-registry-importer",
		Short:         "Register pools and their gauges in the pool registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := LoadConfig(flags.configFile, flagOverrides(cmd))
			if err != nil {
				return err
			}
			flags.cfg = cfg
			flags.flush = InitLogger(cfg.Log)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flags.flush != nil {
				flags.flush()
			}
		},
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (json or yaml)")
	root.PersistentFlags().String("registry", "", "registry address, overrides registry.address")
	root.PersistentFlags().String("deployer", "", "deployer address, overrides registry.deployer")

	root.AddCommand(
		newImportCmd(flags),
		newVerifyCmd(flags),
		newPoolInfoCmd(flags),
		newVersionCmd(flags),
	)
	return root
}

// flagOverrides applies --registry and --deployer over the config file.
func flagOverrides(cmd *cobra.Command) func(*Config) error {
	return func(c *Config) error {
		if err := addressFlagOverride(cmd, "registry", &c.Registry.Address); err != nil {
			return err
		}
		return addressFlagOverride(cmd, "deployer", &c.Registry.Deployer)
	}
}

func addressFlagOverride(cmd *cobra.Command, name string, target *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	if !common.IsHexAddress(v) {
		return fmt.Errorf("--%s: %q is not a hex address", name, v)
	}
	*target = v
	return nil
}

// session holds the chain handles one command needs.
type session struct {
	client   *ethclient.Client
	caller   *ContractCaller
	registry Registry
	redis    *redis.Client
}

func openSession(ctx context.Context, cfg *Config, transactorFor func(*ethclient.Client) (Transactor, error)) (*session, error) {
	client, err := ethclient.DialContext(ctx, cfg.EthRPC.HTTP)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.EthRPC.HTTP, err)
	}

	var transactor Transactor
	if transactorFor != nil {
		if transactor, err = transactorFor(client); err != nil {
			client.Close()
			return nil, err
		}
	}

	caller := NewContractCaller(client, readRetryOptions(cfg.Retry), Log)
	return &session{
		client:   client,
		caller:   caller,
		registry: NewRegistry(cfg.RegistryAddress(), caller, transactor, Log),
	}, nil
}

func (s *session) close() {
	s.client.Close()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// prober probes swap bytecode through the capability cache.
func (s *session) prober(conf *CacheConf) CapabilityProber {
	if conf.RedisAddr != "" && s.redis == nil {
		s.redis = redis.NewClient(&redis.Options{
			Addr: conf.RedisAddr,
			DB:   conf.RedisDB,
		})
	}
	ttl := time.Hour * time.Duration(conf.TTLHours)
	return NewCachedProber(NewCodeProber(s.client, Log), s.redis, ttl, Log)
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch pool metadata, add new pools and update gauges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), flags.cfg, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log registry writes instead of sending them")
	return cmd
}

func runImport(ctx context.Context, cfg *Config, dryRun bool) error {
	var transactorFor func(*ethclient.Client) (Transactor, error)
	if !dryRun {
		transactorFor = func(client *ethclient.Client) (Transactor, error) {
			chainID, err := client.ChainID(ctx)
			if err != nil {
				return nil, fmt.Errorf("chain id: %w", err)
			}
			opts, err := NewSignerOpts(cfg.Signer, cfg.DeployerAddress(), chainID)
			if err != nil {
				return nil, err
			}
			return NewTransactor(client, opts, Log), nil
		}
	}

	s, err := openSession(ctx, cfg, transactorFor)
	if err != nil {
		return err
	}
	defer s.close()

	registry := s.registry
	if dryRun {
		registry = NewDryRunRegistry(registry, Log)
	}

	gasPrice, err := NewGasPriceSource(cfg.Gas, s.client, Log)
	if err != nil {
		return err
	}

	source := NewMetadataSource(cfg.Metadata, s.prober(cfg.Cache), Log)
	records, err := source.FetchPools(ctx)
	if err != nil {
		return fmt.Errorf("fetch pool data: %w", err)
	}

	metrics := NewMetrics()
	_, runErr := NewImporter(registry, gasPrice, metrics, Log).Run(ctx, records)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			Log.Error("write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	return runErr
}

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare registry contents with the published pool metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, flags.cfg, nil)
			if err != nil {
				return err
			}
			defer s.close()

			source := NewMetadataSource(flags.cfg.Metadata, s.prober(flags.cfg.Cache), Log)
			records, err := source.FetchPools(ctx)
			if err != nil {
				return fmt.Errorf("fetch pool data: %w", err)
			}

			mismatches, err := Verify(ctx, s.registry, NewPoolStateReader(s.caller), records, Log)
			if err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d registry mismatches", len(mismatches))
			}
			return nil
		},
	}
}

func newPoolInfoCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pool-info <pool address>",
		Short: "Print the registry's pool info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not a hex address", args[0])
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, flags.cfg, nil)
			if err != nil {
				return err
			}
			defer s.close()

			info, err := s.registry.GetPoolInfo(ctx, common.HexToAddress(args[0]))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

// newVersionCmd never fails on config: the target lines are only printed
// when the config loads.
func newVersionCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information and the configured registry",
		Run: func(cmd *cobra.Command, args []string) {
			info := GetVersion()
			if cfg, err := LoadConfig(flags.configFile, flagOverrides(cmd)); err == nil {
				info.Registry = cfg.RegistryAddress().Hex()
				info.EthRPC = cfg.EthRPC.HTTP
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
		},
	}
}
