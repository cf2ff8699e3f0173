package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ncasillas/txpilot/internal/chain"
	"github.com/ncasillas/txpilot/internal/config"
	"github.com/ncasillas/txpilot/internal/ens"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/execution"
	"github.com/ncasillas/txpilot/internal/execution/signer"
	"github.com/ncasillas/txpilot/internal/httpx"
	"github.com/ncasillas/txpilot/internal/idempotency"
	"github.com/ncasillas/txpilot/internal/intent"
	"github.com/ncasillas/txpilot/internal/policy"
	"github.com/ncasillas/txpilot/internal/rpcpool"
	"github.com/ncasillas/txpilot/internal/token"
	"github.com/ncasillas/txpilot/internal/token/coingecko"
	"github.com/ncasillas/txpilot/internal/token/lifi"
	"github.com/ncasillas/txpilot/internal/token/oneinch"
	"github.com/ncasillas/txpilot/internal/version"
)

// Runner owns the CLI process lifecycle: flag parsing, wiring, command
// dispatch and exit-code mapping.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

// runtimeState is built once per invocation in the root command's
// PersistentPreRunE and shared by every subcommand.
type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	debug    bool
	settings config.Settings
	logger   *slog.Logger

	registry   *chain.Registry
	http       *httpx.Client
	health     *rpcpool.HealthTracker
	normalizer *intent.Normalizer
	guard      *idempotency.Guard
	engine     *policy.Engine
	quoter     *execution.LiFiQuoter
	store      idempotency.Store
	sweeper    *idempotency.Sweeper

	mu      sync.Mutex
	clients map[int64]*rpcpool.ChainClient
	signer  *signer.LocalSigner
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, clients: map[int64]*rpcpool.ChainClient{}}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	state.close()
	if err == nil {
		return 0
	}
	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if closer, ok := s.store.(io.Closer); ok && closer != nil {
		_ = closer.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Intent-based transaction pilot for EVM chains",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			level := slog.LevelInfo
			if s.debug {
				level = slog.LevelDebug
			}
			s.logger = slog.New(tint.NewHandler(s.runner.stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.RFC3339,
			}))

			return s.buildCore()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON instead of plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "RPC and provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.Preset, "preset", "", "Policy preset (safe, moderate, advanced)")
	cmd.PersistentFlags().StringVar(&s.flags.Mode, "mode", "", "Account mode (eoa, smartaccount, passkey)")
	cmd.PersistentFlags().StringVar(&s.flags.User, "user", "", "User identifier for duplicate tracking")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&s.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(s.newSendCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newBridgeCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newPolicyCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// buildCore wires the stage collaborators shared by the intent
// commands. RPC connections are dialed lazily per chain.
func (s *runtimeState) buildCore() error {
	s.registry = chain.NewRegistry(s.settings.RPCOverrides)
	s.http = httpx.New(s.settings.Timeout, s.settings.Retries)
	s.health = rpcpool.NewHealthTracker(s.settings.HealthStaleAfter)
	s.quoter = execution.NewLiFiQuoter(s.http, s.settings.LiFiAPIKey)

	providers := []token.SearchProvider{
		lifi.New(s.http, s.settings.LiFiAPIKey),
		coingecko.New(s.http),
		oneinch.New(s.http),
	}
	tokens := token.NewResolver(s.registry, providers, s.settings.Timeout, s.logger)

	mainnet, err := s.client(1)
	if err != nil {
		return err
	}
	names := ens.NewResolver(mainnet)
	s.normalizer = intent.NewNormalizer(s.registry, tokens, names, s.logger)

	store, err := s.openStore()
	if err != nil {
		return err
	}
	s.store = store
	s.guard = idempotency.NewGuard(store, s.settings.IdempotencyWindow, s.logger)
	s.sweeper = idempotency.NewSweeper(store, s.settings.IdempotencyWindow, s.logger)
	s.sweeper.Start()

	preset, ok := policy.Preset(s.settings.Preset)
	if !ok {
		return clierr.Newf(clierr.CodeUsage, "unknown policy preset %q (want one of %v)", s.settings.Preset, policy.PresetNames())
	}
	s.engine = policy.NewEngine(preset)
	return nil
}

func (s *runtimeState) openStore() (idempotency.Store, error) {
	switch s.settings.StoreBackend {
	case "sqlite":
		store, err := idempotency.OpenSQLiteStore(s.settings.StorePath, s.settings.StoreLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open prompt store", err)
		}
		return store, nil
	case "redis":
		store, err := idempotency.NewRedisStore(s.settings.RedisURL)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "connect to redis prompt store", err)
		}
		return store, nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func (s *runtimeState) client(chainID int64) (*rpcpool.ChainClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[chainID]; ok {
		return c, nil
	}
	cfg, err := s.registry.ResolveID(chainID)
	if err != nil {
		return nil, err
	}
	c := rpcpool.NewChainClient(cfg, s.health, s.logger)
	s.clients[chainID] = c
	return c, nil
}

func (s *runtimeState) localSigner() (*signer.LocalSigner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signer != nil {
		return s.signer, nil
	}
	sgn, err := signer.NewLocalSigner(signer.FromEnv())
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "load signing key", err)
	}
	s.signer = sgn
	return sgn, nil
}

// routerFor builds the execution router for one chain, holding only
// the backend the configured account mode needs.
func (s *runtimeState) routerFor(ctx context.Context, chainID int64) (*execution.Router, error) {
	client, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	cfg := client.Chain()

	switch s.settings.Mode {
	case execution.ModeEOA:
		sgn, err := s.localSigner()
		if err != nil {
			return nil, err
		}
		return execution.NewRouter(execution.NewEOABackend(cfg, client, sgn, s.quoter, s.logger)), nil
	case execution.ModeSmartAccount:
		if s.settings.BundlerURL == "" || s.settings.SmartAccount == "" {
			return nil, clierr.New(clierr.CodeUsage, "smartaccount mode needs accounts.bundler_url and accounts.smart_account configured")
		}
		bundler, err := rpc.DialContext(ctx, s.settings.BundlerURL)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "dial bundler", err)
		}
		account := common.HexToAddress(s.settings.SmartAccount)
		return execution.NewRouter(execution.NewSmartAccountBackend(cfg, bundler, client, account, s.quoter, s.logger)), nil
	case execution.ModePasskey:
		if s.settings.WalletRPCURL == "" || s.settings.SmartAccount == "" {
			return nil, clierr.New(clierr.CodeUsage, "passkey mode needs accounts.wallet_rpc_url and accounts.smart_account configured")
		}
		wallet, err := rpc.DialContext(ctx, s.settings.WalletRPCURL)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "dial wallet service", err)
		}
		account := common.HexToAddress(s.settings.SmartAccount)
		backend := execution.NewPasskeyBackend(cfg, wallet, account, s.settings.PaymasterURL, s.logger)
		if s.settings.PaymasterURL != "" {
			backend.EnrollSponsorship(chainID, intent.KindNativeTransfer)
			backend.EnrollSponsorship(chainID, intent.KindERC20Transfer)
		}
		return execution.NewRouter(backend), nil
	default:
		return nil, clierr.Newf(clierr.CodeUsage, "unknown account mode %q", s.settings.Mode)
	}
}

// defaultSender is used when --from is not given: the local key's
// address in eoa mode, the configured smart account otherwise.
func (s *runtimeState) defaultSender() (string, error) {
	switch s.settings.Mode {
	case execution.ModeEOA:
		sgn, err := s.localSigner()
		if err != nil {
			return "", err
		}
		return sgn.Address().Hex(), nil
	default:
		if s.settings.SmartAccount == "" {
			return "", clierr.New(clierr.CodeUsage, "no sender: pass --from or configure accounts.smart_account")
		}
		return s.settings.SmartAccount, nil
	}
}

func (s *runtimeState) userID() string {
	if s.settings.User != "" {
		return s.settings.User
	}
	return "local"
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Long())
		},
	}
}
