// Package staking builds liquid-staking deposits into sFLR.
package staking

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

// StakeGasLimit is the fixed gas limit for submit().
const StakeGasLimit uint64 = 200_000

var stakedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(registry.StakedFlareABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// StakeIntent is a parsed "stake <amount> flr" command.
type StakeIntent struct {
	Amount float64 `json:"amount"`
	Token  string  `json:"token"`
	Action string  `json:"action"`
}

type Helper struct {
	reader  chain.Reader
	network registry.Network
}

func NewHelper(reader chain.Reader, network registry.Network) *Helper {
	return &Helper{reader: reader, network: network}
}

func (h *Helper) contract() (common.Address, error) {
	addr, ok := registry.StakedFlareContract(h.network.ChainID)
	if !ok {
		return common.Address{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("liquid staking is not available on %s", h.network.Name))
	}
	return common.HexToAddress(addr), nil
}

// BuildStake sends amount of the native asset to submit(). The entrypoint
// takes no arguments so calldata is the bare selector.
func (h *Helper) BuildStake(ctx context.Context, wallet string, amount float64) (txbuilder.UnsignedTransaction, error) {
	if _, err := id.ParseAddress(wallet); err != nil {
		return txbuilder.UnsignedTransaction{}, err
	}
	target, err := h.contract()
	if err != nil {
		return txbuilder.UnsignedTransaction{}, err
	}
	value, err := id.ToBaseUnits(amount, id.NativeDecimals)
	if err != nil {
		return txbuilder.UnsignedTransaction{}, err
	}
	data, err := hexutil.Decode(registry.SubmitSelector)
	if err != nil {
		return txbuilder.UnsignedTransaction{}, clierr.Wrap(clierr.CodeInternal, "decode submit selector", err)
	}
	return txbuilder.Assemble(ctx, h.reader, common.HexToAddress(wallet), target, value, data, StakeGasLimit)
}

// ReadStakedBalance returns the wallet's sFLR balance in whole tokens.
func (h *Helper) ReadStakedBalance(ctx context.Context, wallet string) (string, error) {
	if _, err := id.ParseAddress(wallet); err != nil {
		return "", err
	}
	target, err := h.contract()
	if err != nil {
		return "", err
	}
	callData, err := stakedABI.Pack("balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "pack balanceOf", err)
	}
	out, err := h.reader.CallContract(ctx, ethereum.CallMsg{To: &target, Data: callData}, nil)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "read staked balance", err)
	}
	decoded, err := stakedABI.Unpack("balanceOf", out)
	if err != nil || len(decoded) == 0 {
		return "", clierr.Wrap(clierr.CodeUnavailable, "decode staked balance", err)
	}
	balance, ok := decoded[0].(*big.Int)
	if !ok {
		return "", clierr.New(clierr.CodeUnavailable, "invalid balanceOf response")
	}
	return id.FormatUnits(balance, id.NativeDecimals), nil
}

var nativeNames = map[string]bool{"flr": true, "flare": true}

// ParseCommand scans for "stake <number> flr|flare". The first match wins.
func ParseCommand(text string) (StakeIntent, error) {
	words := strings.Fields(strings.ToLower(text))
	sawAmount := false
	for i, word := range words {
		if word != "stake" || i+2 >= len(words) {
			continue
		}
		amount, err := strconv.ParseFloat(words[i+1], 64)
		if err != nil || math.IsInf(amount, 0) || !(amount > 0) {
			continue
		}
		sawAmount = true
		if nativeNames[words[i+2]] {
			return StakeIntent{Amount: amount, Token: "FLR", Action: "stake"}, nil
		}
	}
	if !sawAmount {
		return StakeIntent{}, clierr.New(clierr.CodeValidation, "could not parse staking amount from command")
	}
	return StakeIntent{}, clierr.New(clierr.CodeValidation, "invalid staking command format")
}
