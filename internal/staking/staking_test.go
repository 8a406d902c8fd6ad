package staking

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ggonzalez94/defai/internal/chain"
	"github.com/ggonzalez94/defai/internal/chain/chaintest"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/registry"
)

const wallet = "0x00000000000000000000000000000000000000aa"

func newHelper(t *testing.T, srv *chaintest.Server, slug string) *Helper {
	t.Helper()
	network, err := registry.LookupNetwork(slug)
	if err != nil {
		t.Fatalf("lookup network: %v", err)
	}
	c, err := chain.Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(c.Close)
	return NewHelper(c, network)
}

func TestParseCommand(t *testing.T) {
	got, err := ParseCommand("Stake 2.5 FLR")
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	if got.Amount != 2.5 || got.Token != "FLR" || got.Action != "stake" {
		t.Fatalf("unexpected intent: %+v", got)
	}

	got, err = ParseCommand("please stake 10 flare to sflr")
	if err != nil || got.Amount != 10 {
		t.Fatalf("expected 10 flare, got %+v err=%v", got, err)
	}
}

func TestParseCommandFirstMatchWins(t *testing.T) {
	got, err := ParseCommand("stake 1 flr then stake 3 flr")
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	if got.Amount != 1 {
		t.Fatalf("expected first match, got %+v", got)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, input := range []string{"stake some flr", "stake", "stake 5", "stake 5 usdc", "hello"} {
		if _, err := ParseCommand(input); !clierr.Is(err, clierr.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", input, err)
		}
	}
}

func TestBuildStake(t *testing.T) {
	srv := chaintest.NewServer(t, 14)
	tx, err := newHelper(t, srv, "flare").BuildStake(context.Background(), wallet, 2.5)
	if err != nil {
		t.Fatalf("BuildStake failed: %v", err)
	}
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	if tx.Value.Cmp(want) != 0 {
		t.Fatalf("unexpected value: %s", tx.Value)
	}
	if hexutil.Encode(tx.Data) != registry.SubmitSelector {
		t.Fatalf("unexpected calldata: %x", tx.Data)
	}
	contract, _ := registry.StakedFlareContract(14)
	if !strings.EqualFold(tx.To, contract) {
		t.Fatalf("unexpected target: %s", tx.To)
	}
	if tx.Gas != StakeGasLimit || tx.ChainID.Int64() != 14 || tx.Nonce != 7 {
		t.Fatalf("unexpected tx: %+v", tx)
	}
}

func TestBuildStakeUnsupportedNetwork(t *testing.T) {
	srv := chaintest.NewServer(t, 114)
	_, err := newHelper(t, srv, "coston2").BuildStake(context.Background(), wallet, 1)
	if !clierr.Is(err, clierr.CodeUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestReadStakedBalance(t *testing.T) {
	srv := chaintest.NewServer(t, 14)
	srv.Handle("eth_call", func(params []json.RawMessage) (any, error) {
		data, err := chaintest.CallData(params)
		if err != nil {
			return nil, err
		}
		if hexutil.Encode(data[:4]) != "0x70a08231" {
			t.Errorf("expected balanceOf selector, got %x", data[:4])
		}
		balance, _ := new(big.Int).SetString("1250000000000000000", 10)
		out, err := stakedABI.Methods["balanceOf"].Outputs.Pack(balance)
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(out), nil
	})
	got, err := newHelper(t, srv, "flare").ReadStakedBalance(context.Background(), wallet)
	if err != nil {
		t.Fatalf("ReadStakedBalance failed: %v", err)
	}
	if got != "1.25" {
		t.Fatalf("expected 1.25, got %s", got)
	}
}
