package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags are the command-line inputs that layer on top of file and
// environment configuration.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Timeout    string
	Retries    int
	Preset     string
	Mode       string
	User       string
}

// Settings is the resolved configuration: defaults, then the YAML file,
// then environment, then flags, each layer overriding the previous.
type Settings struct {
	JSON    bool
	Timeout time.Duration
	Retries int

	Preset string
	Mode   string
	User   string

	HealthStaleAfter  time.Duration
	IdempotencyWindow time.Duration
	MonitorTimeout    time.Duration
	MonitorInterval   time.Duration

	// RPCOverrides prepend endpoints per chain at priority 0.
	RPCOverrides map[int64][]string

	StoreBackend  string // memory | sqlite | redis
	StorePath     string
	StoreLockPath string
	RedisURL      string

	LiFiAPIKey string

	BundlerURL   string
	WalletRPCURL string
	PaymasterURL string
	SmartAccount string
}

type fileConfig struct {
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Preset  string `yaml:"preset"`
	Mode    string `yaml:"mode"`
	User    string `yaml:"user"`

	Health struct {
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"health"`
	Idempotency struct {
		Window   string `yaml:"window"`
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"idempotency"`
	Monitor struct {
		Timeout  string `yaml:"timeout"`
		Interval string `yaml:"interval"`
	} `yaml:"monitor"`

	RPCOverrides map[string][]string `yaml:"rpc_overrides"`

	Providers struct {
		LiFi struct {
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"lifi"`
	} `yaml:"providers"`

	Accounts struct {
		BundlerURL   string `yaml:"bundler_url"`
		WalletRPCURL string `yaml:"wallet_rpc_url"`
		PaymasterURL string `yaml:"paymaster_url"`
		SmartAccount string `yaml:"smart_account"`
	} `yaml:"accounts"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	switch settings.StoreBackend {
	case "memory", "sqlite", "redis":
	default:
		return Settings{}, fmt.Errorf("unknown idempotency backend %q (want memory, sqlite or redis)", settings.StoreBackend)
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Timeout:           10 * time.Second,
		Retries:           2,
		Preset:            "safe",
		Mode:              "eoa",
		HealthStaleAfter:  60 * time.Second,
		IdempotencyWindow: 5 * time.Minute,
		MonitorTimeout:    2 * time.Minute,
		MonitorInterval:   3 * time.Second,
		RPCOverrides:      map[int64][]string{},
		StoreBackend:      "memory",
		StorePath:         storePath,
		StoreLockPath:     lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "txpilot", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "txpilot")
	return filepath.Join(dir, "prompts.db"), filepath.Join(dir, "prompts.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Preset != "" {
		settings.Preset = strings.ToLower(cfg.Preset)
	}
	if cfg.Mode != "" {
		settings.Mode = strings.ToLower(cfg.Mode)
	}
	if cfg.User != "" {
		settings.User = cfg.User
	}
	if cfg.Health.StaleAfter != "" {
		d, err := time.ParseDuration(cfg.Health.StaleAfter)
		if err != nil {
			return fmt.Errorf("config health.stale_after: %w", err)
		}
		settings.HealthStaleAfter = d
	}
	if cfg.Idempotency.Window != "" {
		d, err := time.ParseDuration(cfg.Idempotency.Window)
		if err != nil {
			return fmt.Errorf("config idempotency.window: %w", err)
		}
		settings.IdempotencyWindow = d
	}
	if cfg.Idempotency.Backend != "" {
		settings.StoreBackend = strings.ToLower(cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.Path != "" {
		settings.StorePath = cfg.Idempotency.Path
	}
	if cfg.Idempotency.LockPath != "" {
		settings.StoreLockPath = cfg.Idempotency.LockPath
	}
	if cfg.Idempotency.RedisURL != "" {
		settings.RedisURL = cfg.Idempotency.RedisURL
	}
	if cfg.Monitor.Timeout != "" {
		d, err := time.ParseDuration(cfg.Monitor.Timeout)
		if err != nil {
			return fmt.Errorf("config monitor.timeout: %w", err)
		}
		settings.MonitorTimeout = d
	}
	if cfg.Monitor.Interval != "" {
		d, err := time.ParseDuration(cfg.Monitor.Interval)
		if err != nil {
			return fmt.Errorf("config monitor.interval: %w", err)
		}
		settings.MonitorInterval = d
	}
	for rawID, urls := range cfg.RPCOverrides {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return fmt.Errorf("config rpc_overrides: %q is not a chain id", rawID)
		}
		settings.RPCOverrides[id] = append(settings.RPCOverrides[id], urls...)
	}

	if cfg.Providers.LiFi.APIKey != "" {
		settings.LiFiAPIKey = cfg.Providers.LiFi.APIKey
	}
	if cfg.Providers.LiFi.APIKeyEnv != "" {
		settings.LiFiAPIKey = os.Getenv(cfg.Providers.LiFi.APIKeyEnv)
	}

	if cfg.Accounts.BundlerURL != "" {
		settings.BundlerURL = cfg.Accounts.BundlerURL
	}
	if cfg.Accounts.WalletRPCURL != "" {
		settings.WalletRPCURL = cfg.Accounts.WalletRPCURL
	}
	if cfg.Accounts.PaymasterURL != "" {
		settings.PaymasterURL = cfg.Accounts.PaymasterURL
	}
	if cfg.Accounts.SmartAccount != "" {
		settings.SmartAccount = cfg.Accounts.SmartAccount
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := strings.TrimSpace(os.Getenv("TXPILOT_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_PRESET")); v != "" {
		settings.Preset = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_MODE")); v != "" {
		settings.Mode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_USER")); v != "" {
		settings.User = v
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_REDIS_URL")); v != "" {
		settings.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_LIFI_API_KEY")); v != "" {
		settings.LiFiAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_BUNDLER_URL")); v != "" {
		settings.BundlerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TXPILOT_WALLET_RPC_URL")); v != "" {
		settings.WalletRPCURL = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	settings.JSON = flags.JSON
	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.Preset) != "" {
		settings.Preset = strings.ToLower(flags.Preset)
	}
	if strings.TrimSpace(flags.Mode) != "" {
		settings.Mode = strings.ToLower(flags.Mode)
	}
	if strings.TrimSpace(flags.User) != "" {
		settings.User = flags.User
	}
	return nil
}
