// Package signer holds a local key and submits staged transactions with it.
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

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

const (
	EnvPrivateKey           = "DEFAI_PRIVATE_KEY"
	EnvPrivateKeyFile       = "DEFAI_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "DEFAI_KEYSTORE_PATH"
	EnvKeystorePassword     = "DEFAI_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "DEFAI_KEYSTORE_PASSWORD_FILE"

	KeySourceNone     = "none"
	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultKeyRelativePath = "defai/key.hex"
)

type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

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

type KeyConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

// KeyConfigFromEnv reads key material locations for the given source. The
// auto source keeps everything and lets the precedence in NewLocalSigner
// decide: raw key, then key file, then keystore.
func KeyConfigFromEnv(source string) (KeyConfig, error) {
	cfg := KeyConfig{
		PrivateKeyHex:        strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		PrivateKeyFile:       strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)),
		KeystorePath:         strings.TrimSpace(os.Getenv(EnvKeystorePath)),
		KeystorePassword:     strings.TrimSpace(os.Getenv(EnvKeystorePassword)),
		KeystorePasswordFile: strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile)),
	}
	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = discoverDefaultKeyFile()
	}
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", KeySourceAuto:
	case KeySourceEnv:
		cfg = KeyConfig{PrivateKeyHex: cfg.PrivateKeyHex}
	case KeySourceFile:
		cfg = KeyConfig{PrivateKeyFile: cfg.PrivateKeyFile}
	case KeySourceKeystore:
		cfg.PrivateKeyHex = ""
		cfg.PrivateKeyFile = ""
	default:
		return KeyConfig{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported key source %q (expected %s|%s|%s|%s|%s)", source, KeySourceNone, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore))
	}
	return cfg, nil
}

// Configured reports whether any key material is present.
func (c KeyConfig) Configured() bool {
	return c.PrivateKeyHex != "" || c.PrivateKeyFile != "" || c.KeystorePath != ""
}

func NewLocalSigner(cfg KeyConfig) (*LocalSigner, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeAuth, "load signing key", err)
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, clierr.New(clierr.CodeAuth, "invalid ECDSA public key")
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(*pub)}, nil
}

func loadPrivateKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	if cfg.PrivateKeyHex != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if cfg.PrivateKeyFile != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if cfg.KeystorePath != "" {
		password := cfg.KeystorePassword
		if password == "" && cfg.KeystorePasswordFile != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, fmt.Errorf("read keystore password file: %w", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if password == "" {
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
	return nil, fmt.Errorf("missing signing key: set %s, %s or %s, or save a hex key to %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, defaultKeyPath())
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

func defaultKeyPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, defaultKeyRelativePath)
}

func discoverDefaultKeyFile() string {
	path := defaultKeyPath()
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
