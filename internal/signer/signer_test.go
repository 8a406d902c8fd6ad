package signer

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ggonzalez94/defai/internal/chain/chaintest"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, EnvKeystorePassword, EnvKeystorePasswordFile} {
		t.Setenv(key, "")
	}
}

func mustSigner(t *testing.T) *LocalSigner {
	t.Helper()
	s, err := NewLocalSigner(KeyConfig{PrivateKeyHex: "0x" + testPrivateKey})
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	return s
}

func TestKeyConfigFromEnvHex(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKey, testPrivateKey)
	cfg, err := KeyConfigFromEnv(KeySourceEnv)
	if err != nil {
		t.Fatalf("KeyConfigFromEnv failed: %v", err)
	}
	s, err := NewLocalSigner(cfg)
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	if s.Address() != mustSigner(t).Address() {
		t.Fatalf("unexpected address %s", s.Address().Hex())
	}
}

func TestKeyConfigAutoUsesDefaultKeyFile(t *testing.T) {
	clearKeyEnv(t)
	cfgDir := t.TempDir()
	keyFile := filepath.Join(cfgDir, "defai", "key.hex")
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(keyFile, []byte(testPrivateKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", cfgDir)

	cfg, err := KeyConfigFromEnv(KeySourceAuto)
	if err != nil {
		t.Fatalf("KeyConfigFromEnv failed: %v", err)
	}
	if cfg.PrivateKeyFile != keyFile || !cfg.Configured() {
		t.Fatalf("expected default key file, got %+v", cfg)
	}
	if _, err := NewLocalSigner(cfg); err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
}

func TestKeyConfigSourceFiltersAndErrors(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKey, testPrivateKey)
	cfg, err := KeyConfigFromEnv(KeySourceKeystore)
	if err != nil {
		t.Fatalf("KeyConfigFromEnv failed: %v", err)
	}
	if cfg.Configured() {
		t.Fatalf("keystore source must ignore raw keys: %+v", cfg)
	}
	if _, err := KeyConfigFromEnv("hsm"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	_, err = NewLocalSigner(KeyConfig{})
	if !clierr.Is(err, clierr.CodeAuth) || !strings.Contains(err.Error(), EnvPrivateKey) {
		t.Fatalf("expected auth error naming %s, got %v", EnvPrivateKey, err)
	}
}

func TestToTransactionShapes(t *testing.T) {
	legacy, err := ToTransaction(txbuilder.UnsignedTransaction{
		To: "0x0000000000000000000000000000000000000001", Gas: 21_000,
		GasPrice: big.NewInt(5), ChainID: big.NewInt(14), Type: txbuilder.TxTypeLegacy,
	})
	if err != nil {
		t.Fatalf("legacy ToTransaction failed: %v", err)
	}
	if legacy.Type() != types.LegacyTxType || legacy.GasPrice().Int64() != 5 || legacy.Value().Sign() != 0 {
		t.Fatalf("unexpected legacy tx: type=%d price=%s", legacy.Type(), legacy.GasPrice())
	}

	dynamic, err := ToTransaction(txbuilder.UnsignedTransaction{
		To: "0x0000000000000000000000000000000000000001", Gas: 21_000, Nonce: 3,
		MaxFeePerGas: big.NewInt(50), MaxPriorityFeePerGas: big.NewInt(2),
		ChainID: big.NewInt(14), Type: txbuilder.TxTypeDynamicFee,
	})
	if err != nil {
		t.Fatalf("dynamic ToTransaction failed: %v", err)
	}
	if dynamic.Type() != types.DynamicFeeTxType || dynamic.GasFeeCap().Int64() != 50 || dynamic.GasTipCap().Int64() != 2 || dynamic.Nonce() != 3 {
		t.Fatalf("unexpected dynamic tx: %+v", dynamic)
	}

	if _, err := ToTransaction(txbuilder.UnsignedTransaction{GasPrice: big.NewInt(1)}); !clierr.Is(err, clierr.CodeSubmit) {
		t.Fatalf("expected submit error without chain id, got %v", err)
	}
}

func TestSubmitterSignsAndBroadcasts(t *testing.T) {
	s := mustSigner(t)
	rpc := chaintest.NewServer(t, 14)
	rpc.Handle("eth_sendRawTransaction", chaintest.Result("0x01"))
	client, err := ethclient.Dial(rpc.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)

	sub := NewSubmitter(s, client)
	tx := txbuilder.UnsignedTransaction{
		From:                 strings.ToLower(s.Address().Hex()),
		To:                   "0xABCDabcdABCDabcdABCDabcdABCDabcdABCD1234",
		Value:                big.NewInt(1_500_000_000_000_000_000),
		Gas:                  21_000,
		MaxFeePerGas:         big.NewInt(52_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		Nonce:                7,
		ChainID:              big.NewInt(14),
		Type:                 txbuilder.TxTypeDynamicFee,
	}
	hash, err := sub.SendTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}

	calls := rpc.Calls("eth_sendRawTransaction")
	if len(calls) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(calls))
	}
	var raw string
	if err := json.Unmarshal(calls[0][0], &raw); err != nil {
		t.Fatalf("decode raw tx param: %v", err)
	}
	var sent types.Transaction
	if err := sent.UnmarshalBinary(hexutil.MustDecode(raw)); err != nil {
		t.Fatalf("decode raw tx: %v", err)
	}
	if sent.Hash() != hash {
		t.Fatalf("returned hash %s does not match broadcast %s", hash, sent.Hash())
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(14)), &sent)
	if err != nil || from != s.Address() {
		t.Fatalf("unexpected sender %s err=%v", from.Hex(), err)
	}
	if sent.Nonce() != 7 || sent.Value().Cmp(tx.Value) != 0 {
		t.Fatalf("unexpected broadcast tx nonce=%d value=%s", sent.Nonce(), sent.Value())
	}
}

func TestSubmitterRejectsForeignSender(t *testing.T) {
	sub := NewSubmitter(mustSigner(t), nil)
	_, err := sub.SendTransaction(context.Background(), txbuilder.UnsignedTransaction{
		From: "0x00000000000000000000000000000000000000aa", GasPrice: big.NewInt(1), ChainID: big.NewInt(14),
	})
	if !clierr.Is(err, clierr.CodeSubmit) {
		t.Fatalf("expected submit error, got %v", err)
	}
	if _, err := sub.SendTransaction(context.Background(), "not a tx"); !clierr.Is(err, clierr.CodeSubmit) {
		t.Fatalf("expected submit error for wrong type, got %v", err)
	}
	if sub.Address() == (common.Address{}) {
		t.Fatal("expected signer address")
	}
}
