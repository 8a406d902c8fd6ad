package txbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/registry"
)

const (
	// SwapGasLimit is a fixed conservative limit for router swaps.
	SwapGasLimit uint64 = 300_000
	// TransferGasLimit is used when estimating a plain transfer fails.
	TransferGasLimit uint64 = 21_000
	SwapDeadline            = 20 * time.Minute
)

type Builder struct {
	reader  chain.Reader
	network registry.Network
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Builder)

func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func New(reader chain.Reader, network registry.Network, opts ...Option) *Builder {
	b := &Builder{reader: reader, network: network, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SwapResult is a built swap with the pricing that produced it.
type SwapResult struct {
	Transaction   UnsignedTransaction `json:"transaction"`
	TokenIn       string              `json:"token_in"`
	TokenOut      string              `json:"token_out"`
	AmountIn      float64             `json:"amount_in"`
	AmountInUnits *big.Int            `json:"amount_in_units"`
	Path          []string            `json:"path,omitempty"`
	ExpectedOut   *big.Int            `json:"expected_out"`
	MinAmountOut  *big.Int            `json:"min_amount_out"`
	OutDecimals   int                 `json:"out_decimals"`
	Deadline      int64               `json:"deadline,omitempty"`
	NeedsApproval bool                `json:"needs_approval"`
	Wrap          bool                `json:"wrap,omitempty"`
}

// BuildTransfer builds a native-asset transfer. Nonce and fees are read live
// on every call.
func (b *Builder) BuildTransfer(ctx context.Context, from, to string, amount float64) (UnsignedTransaction, error) {
	if _, err := id.ParseAddress(from); err != nil {
		return UnsignedTransaction{}, err
	}
	if _, err := id.ParseAddress(to); err != nil {
		return UnsignedTransaction{}, err
	}
	value, err := id.ToBaseUnits(amount, b.network.NativeToken().Decimals)
	if err != nil {
		return UnsignedTransaction{}, err
	}
	sender := common.HexToAddress(from)
	target := common.HexToAddress(to)
	gas, err := b.reader.EstimateGas(ctx, ethereum.CallMsg{From: sender, To: &target, Value: value})
	if err != nil {
		b.log.Debug("transfer gas estimate failed, using default", "error", err)
		gas = TransferGasLimit
	}
	return b.assemble(ctx, sender, target, value, nil, gas)
}

// BuildSwap builds a same-chain swap for wallet. A native -> wrapped-native
// request becomes a deposit() call; everything else goes through the router.
// Approval is never sent here; NeedsApproval reports whether the router
// allowance is short.
func (b *Builder) BuildSwap(ctx context.Context, fromToken, toToken string, amount float64, wallet string) (SwapResult, error) {
	if _, err := id.ParseAddress(wallet); err != nil {
		return SwapResult{}, err
	}
	in, err := b.network.Token(fromToken)
	if err != nil {
		return SwapResult{}, err
	}
	out, err := b.network.Token(toToken)
	if err != nil {
		return SwapResult{}, err
	}
	if in.Symbol == out.Symbol {
		return SwapResult{}, clierr.New(clierr.CodeValidation, "from_token and to_token must differ")
	}
	amountIn, err := id.ToBaseUnits(amount, in.Decimals)
	if err != nil {
		return SwapResult{}, err
	}
	sender := common.HexToAddress(wallet)
	result := SwapResult{
		TokenIn:       in.Symbol,
		TokenOut:      out.Symbol,
		AmountIn:      amount,
		AmountInUnits: amountIn,
		OutDecimals:   out.Decimals,
	}

	if in.Native && out.Symbol == b.network.WrappedNative {
		return b.buildWrap(ctx, sender, out, amountIn, result)
	}

	routerHex, _, ok := registry.BlazeSwapContracts(b.network.ChainID)
	if !ok {
		return SwapResult{}, clierr.New(clierr.CodeBuild, fmt.Sprintf("no swap router configured on %s", b.network.Name))
	}
	router := common.HexToAddress(routerHex)
	route, err := NewPathResolver(b.reader, b.network, router).Resolve(ctx, in, out, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	deadline := big.NewInt(b.now().Add(SwapDeadline).Unix())

	var (
		callData []byte
		value    = new(big.Int)
	)
	if in.Native {
		callData, err = routerABI.Pack("swapExactFLRForTokens", route.MinAmountOut, route.Path, sender, deadline)
		value = amountIn
	} else {
		needs, allowErr := b.needsApproval(ctx, in, sender, router, amountIn)
		if allowErr != nil {
			return SwapResult{}, allowErr
		}
		result.NeedsApproval = needs
		callData, err = routerABI.Pack("swapExactTokensForTokens", amountIn, route.MinAmountOut, route.Path, sender, deadline)
	}
	if err != nil {
		return SwapResult{}, clierr.Wrap(clierr.CodeInternal, "pack swap calldata", err)
	}

	tx, err := b.assemble(ctx, sender, router, value, callData, SwapGasLimit)
	if err != nil {
		return SwapResult{}, err
	}
	result.Transaction = tx
	result.Path = route.PathHex()
	result.ExpectedOut = route.ExpectedOut
	result.MinAmountOut = route.MinAmountOut
	result.Deadline = deadline.Int64()
	return result, nil
}

func (b *Builder) buildWrap(ctx context.Context, sender common.Address, wrapped registry.Token, amountIn *big.Int, result SwapResult) (SwapResult, error) {
	callData, err := wrappedABI.Pack("deposit")
	if err != nil {
		return SwapResult{}, clierr.Wrap(clierr.CodeInternal, "pack deposit calldata", err)
	}
	target := common.HexToAddress(wrapped.Address)
	gas, err := EstimateWithMargin(ctx, b.reader, ethereum.CallMsg{From: sender, To: &target, Value: amountIn, Data: callData})
	if err != nil {
		return SwapResult{}, err
	}
	tx, err := b.assemble(ctx, sender, target, amountIn, callData, gas)
	if err != nil {
		return SwapResult{}, err
	}
	result.Transaction = tx
	result.Wrap = true
	result.ExpectedOut = new(big.Int).Set(amountIn)
	result.MinAmountOut = new(big.Int).Set(amountIn)
	return result, nil
}

func (b *Builder) needsApproval(ctx context.Context, token registry.Token, owner, spender common.Address, amount *big.Int) (bool, error) {
	callData, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return false, clierr.Wrap(clierr.CodeInternal, "pack allowance call", err)
	}
	tokenAddr := common.HexToAddress(token.Address)
	out, err := b.reader.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: callData}, nil)
	if err != nil {
		return false, clierr.Wrap(clierr.CodeBuild, "read token allowance", err)
	}
	decoded, err := erc20ABI.Unpack("allowance", out)
	if err != nil || len(decoded) == 0 {
		return false, clierr.Wrap(clierr.CodeBuild, "decode token allowance", err)
	}
	allowance, ok := decoded[0].(*big.Int)
	if !ok {
		return false, clierr.New(clierr.CodeBuild, "invalid allowance response")
	}
	return allowance.Cmp(amount) < 0, nil
}

// EstimateWithMargin estimates msg and applies the fixed 20% safety margin.
func EstimateWithMargin(ctx context.Context, reader chain.Reader, msg ethereum.CallMsg) (uint64, error) {
	estimated, err := reader.EstimateGas(ctx, msg)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeBuild, "estimate gas", err)
	}
	return applyGasMargin(estimated), nil
}

// assemble fills nonce, fees and chain id from live chain state.
func (b *Builder) assemble(ctx context.Context, from, to common.Address, value *big.Int, data []byte, gas uint64) (UnsignedTransaction, error) {
	return Assemble(ctx, b.reader, from, to, value, data, gas)
}

// Assemble is shared with other builders that produce a fixed call.
func Assemble(ctx context.Context, reader chain.Reader, from, to common.Address, value *big.Int, data []byte, gas uint64) (UnsignedTransaction, error) {
	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return UnsignedTransaction{}, clierr.Wrap(clierr.CodeBuild, "read chain id", err)
	}
	nonce, err := reader.PendingNonceAt(ctx, from)
	if err != nil {
		return UnsignedTransaction{}, clierr.Wrap(clierr.CodeBuild, "fetch nonce", err)
	}
	fees, err := ResolveFees(ctx, reader)
	if err != nil {
		return UnsignedTransaction{}, err
	}
	if value == nil {
		value = new(big.Int)
	}
	tx := UnsignedTransaction{
		From:    from.Hex(),
		To:      to.Hex(),
		Value:   value,
		Data:    data,
		Gas:     gas,
		Nonce:   nonce,
		ChainID: chainID,
	}
	fees.apply(&tx)
	return tx, nil
}
