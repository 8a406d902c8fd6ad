package registry

import (
	"fmt"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// NativeTokenAddress stands in for the native asset in aggregator APIs.
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address,omitempty"`
	Decimals int    `json:"decimals"`
	Native   bool   `json:"native,omitempty"`
}

type Network struct {
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	ChainID       int64            `json:"chain_id"`
	RPCURL        string           `json:"rpc_url"`
	ExplorerURL   string           `json:"explorer_url"`
	NativeSymbol  string           `json:"native_symbol"`
	WrappedNative string           `json:"wrapped_native,omitempty"`
	Tokens        map[string]Token `json:"tokens"`
}

var networksBySlug = map[string]Network{
	"flare": {
		Name:          "Flare",
		Slug:          "flare",
		ChainID:       14,
		RPCURL:        "https://flare-api.flare.network/ext/C/rpc",
		ExplorerURL:   "https://flare-explorer.flare.network",
		NativeSymbol:  "FLR",
		WrappedNative: "WFLR",
		Tokens: map[string]Token{
			"FLR":    {Symbol: "FLR", Decimals: 18, Native: true},
			"WFLR":   {Symbol: "WFLR", Address: "0x1D80c49BbBCd1C0911346656B529DF9E5c2F783d", Decimals: 18},
			"USDC.E": {Symbol: "USDC.E", Address: "0x28a92dde19D9989F39A49905d7C9C2FAc7799bDf", Decimals: 6},
			"SFLR":   {Symbol: "SFLR", Address: "0x12e605bc104e93B45e1aD99F9e555f659051c2BB", Decimals: 18},
		},
	},
	"coston2": {
		Name:          "Flare Testnet Coston2",
		Slug:          "coston2",
		ChainID:       114,
		RPCURL:        "https://coston2-api.flare.network/ext/C/rpc",
		ExplorerURL:   "https://coston2-explorer.flare.network",
		NativeSymbol:  "C2FLR",
		WrappedNative: "WC2FLR",
		Tokens: map[string]Token{
			"C2FLR":  {Symbol: "C2FLR", Decimals: 18, Native: true},
			"WC2FLR": {Symbol: "WC2FLR", Address: "0xC67DCE33D7A8efA5FfEB961899C73fe01bCe9273", Decimals: 18},
		},
	},
	"arbitrum": {
		Name:         "Arbitrum",
		Slug:         "arbitrum",
		ChainID:      42161,
		RPCURL:       "https://arb1.arbitrum.io/rpc",
		ExplorerURL:  "https://arbiscan.io",
		NativeSymbol: "ETH",
		Tokens: map[string]Token{
			"ETH":  {Symbol: "ETH", Decimals: 18, Native: true},
			"USDC": {Symbol: "USDC", Address: "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8", Decimals: 6},
		},
	},
}

// Users say USDC on Flare and mean the bridged USDC.e.
var symbolAliases = map[string]map[string]string{
	"flare": {"USDC": "USDC.E", "FLARE": "FLR"},
}

func LookupNetwork(input string) (Network, error) {
	slug := strings.ToLower(strings.TrimSpace(input))
	if n, ok := networksBySlug[slug]; ok {
		return n, nil
	}
	return Network{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported network %q", input))
}

func NetworkByChainID(chainID int64) (Network, bool) {
	for _, n := range networksBySlug {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

func Networks() []Network {
	out := make([]Network, 0, len(networksBySlug))
	for _, n := range networksBySlug {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Token resolves a symbol (case-insensitive, aliases applied) on the network.
func (n Network) Token(symbol string) (Token, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if alias, ok := symbolAliases[n.Slug][key]; ok {
		key = alias
	}
	tok, ok := n.Tokens[key]
	if !ok {
		return Token{}, clierr.New(clierr.CodeValidation, fmt.Sprintf("token %q is not supported on %s", symbol, n.Name))
	}
	return tok, nil
}

func (n Network) NativeToken() Token {
	return n.Tokens[n.NativeSymbol]
}

// WrappedNativeToken returns the wrapped representation used as swap intermediate.
func (n Network) WrappedNativeToken() (Token, bool) {
	if n.WrappedNative == "" {
		return Token{}, false
	}
	tok, ok := n.Tokens[n.WrappedNative]
	return tok, ok
}

func (n Network) TxURL(hash string) string {
	return strings.TrimSuffix(n.ExplorerURL, "/") + "/tx/" + hash
}
