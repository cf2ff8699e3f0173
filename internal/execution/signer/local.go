package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	EnvPrivateKey           = "TXPILOT_PRIVATE_KEY"
	EnvPrivateKeyFile       = "TXPILOT_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "TXPILOT_KEYSTORE_PATH"
	EnvKeystorePassword     = "TXPILOT_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "TXPILOT_KEYSTORE_PASSWORD_FILE"

	defaultPrivateKeyRelativePath = "txpilot/key.hex"
)

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// LocalSigner holds a plain ECDSA key loaded from env, file, or an
// encrypted keystore, in that precedence.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("local signer is not initialized")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
}

type Config struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

// FromEnv builds the signer config from the TXPILOT_* variables, with
// a conventional key file under the user config directory as fallback.
func FromEnv() Config {
	cfg := Config{
		PrivateKeyHex:        strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		PrivateKeyFile:       strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)),
		KeystorePath:         strings.TrimSpace(os.Getenv(EnvKeystorePath)),
		KeystorePassword:     strings.TrimSpace(os.Getenv(EnvKeystorePassword)),
		KeystorePasswordFile: strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile)),
	}
	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = discoverDefaultPrivateKeyFile()
	}
	return cfg
}

func NewLocalSigner(cfg Config) (*LocalSigner, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid ECDSA public key")
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(*pub)}, nil
}

func loadPrivateKey(cfg Config) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, fmt.Errorf("read keystore password file: %w", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, fmt.Errorf("keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	return nil, fmt.Errorf("missing signing key: set %s or %s or %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath)
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}

func discoverDefaultPrivateKeyFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, defaultPrivateKeyRelativePath)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
