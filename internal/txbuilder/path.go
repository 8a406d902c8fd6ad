package txbuilder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/registry"
)

// DefaultSlippageBps is the 1% tolerance applied to quoted swap output.
const DefaultSlippageBps int64 = 100

var (
	routerABI  = mustABI(registry.BlazeSwapRouterABI)
	erc20ABI   = mustABI(registry.ERC20MinimalABI)
	wrappedABI = mustABI(registry.WrappedNativeABI)
)

// Route is a priced swap path.
type Route struct {
	Path         []common.Address
	ExpectedOut  *big.Int
	MinAmountOut *big.Int
}

func (r Route) PathHex() []string {
	out := make([]string, 0, len(r.Path))
	for _, addr := range r.Path {
		out = append(out, addr.Hex())
	}
	return out
}

// PathResolver prices same-chain swaps against a V2-style router.
type PathResolver struct {
	reader      chain.Reader
	network     registry.Network
	router      common.Address
	slippageBps int64
}

func NewPathResolver(reader chain.Reader, network registry.Network, router common.Address) *PathResolver {
	return &PathResolver{reader: reader, network: network, router: router, slippageBps: DefaultSlippageBps}
}

// Path is [in, out], except that a native input is replaced by the wrapped
// native token since pools only hold ERC-20s.
func (r *PathResolver) Path(in, out registry.Token) ([]common.Address, error) {
	if out.Native {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("swapping into native %s is not supported; swap to %s instead", out.Symbol, r.network.WrappedNative))
	}
	if in.Native {
		wrapped, ok := r.network.WrappedNativeToken()
		if !ok {
			return nil, clierr.New(clierr.CodeBuild, fmt.Sprintf("no wrapped native token configured on %s", r.network.Name))
		}
		return []common.Address{common.HexToAddress(wrapped.Address), common.HexToAddress(out.Address)}, nil
	}
	return []common.Address{common.HexToAddress(in.Address), common.HexToAddress(out.Address)}, nil
}

// Quote returns the router's expected output for amountIn along path.
func (r *PathResolver) Quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	callData, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack getAmountsOut", err)
	}
	router := r.router
	out, err := r.reader.CallContract(ctx, ethereum.CallMsg{To: &router, Data: callData}, nil)
	if err != nil {
		return nil, liquidityError(err)
	}
	decoded, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil || len(decoded) == 0 {
		return nil, liquidityError(fmt.Errorf("decode getAmountsOut: %v", err))
	}
	amounts, ok := decoded[0].([]*big.Int)
	if !ok || len(amounts) == 0 || amounts[len(amounts)-1] == nil || amounts[len(amounts)-1].Sign() <= 0 {
		return nil, liquidityError(fmt.Errorf("router returned no output amount"))
	}
	return amounts[len(amounts)-1], nil
}

func (r *PathResolver) Resolve(ctx context.Context, in, out registry.Token, amountIn *big.Int) (Route, error) {
	path, err := r.Path(in, out)
	if err != nil {
		return Route{}, err
	}
	expected, err := r.Quote(ctx, amountIn, path)
	if err != nil {
		return Route{}, err
	}
	return Route{Path: path, ExpectedOut: expected, MinAmountOut: MinAmountOut(expected, r.slippageBps)}, nil
}

// MinAmountOut is floor(expected * (10000 - bps) / 10000). With the default
// 100 bps this is exactly floor(expected * 0.99).
func MinAmountOut(expected *big.Int, slippageBps int64) *big.Int {
	out := new(big.Int).Mul(expected, big.NewInt(10_000-slippageBps))
	return out.Div(out, big.NewInt(10_000))
}

func liquidityError(cause error) error {
	return clierr.Wrap(clierr.CodeBuild, "failed to get amounts out; the pool might not exist or have enough liquidity", cause)
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
