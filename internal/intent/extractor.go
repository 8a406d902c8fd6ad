package intent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ggonzalez94/defai/internal/bridge"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/llm"
	"github.com/ggonzalez94/defai/internal/registry"
)

// Fields is the raw extraction result. A nil field was not found.
type Fields struct {
	ToAddress *string  `json:"to_address,omitempty"`
	FromToken *string  `json:"from_token,omitempty"`
	ToToken   *string  `json:"to_token,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
}

// FieldSource pulls raw fields for an intent out of a message.
type FieldSource interface {
	Fields(ctx context.Context, in Intent, text string) (Fields, error)
}

// Params is one of SendParams, SwapParams or CrossChainParams.
type Params interface{ params() }

type SendParams struct {
	ToAddress string  `json:"to_address"`
	Amount    float64 `json:"amount"`
}

type SwapParams struct {
	FromToken registry.Token `json:"from_token"`
	ToToken   registry.Token `json:"to_token"`
	Amount    float64        `json:"amount"`
}

type CrossChainParams struct {
	FromToken string  `json:"from_token"`
	ToToken   string  `json:"to_token"`
	Amount    float64 `json:"amount"`
}

func (SendParams) params()       {}
func (SwapParams) params()       {}
func (CrossChainParams) params() {}

// Outcome is either ParametersReady or NeedsMoreInfo.
type Outcome interface{ outcome() }

type ParametersReady struct {
	Params Params
}

// NeedsMoreInfo means the caller should ask the user again rather than fill
// in defaults.
type NeedsMoreInfo struct {
	Intent  Intent
	Missing []string
}

func (ParametersReady) outcome() {}
func (NeedsMoreInfo) outcome()   {}

type Extractor struct {
	source  FieldSource
	network registry.Network
	// bridgeSource is the network cross-chain swaps leave from.
	bridgeSource registry.Network
}

func NewExtractor(source FieldSource, network registry.Network) (*Extractor, error) {
	flare, err := registry.LookupNetwork("flare")
	if err != nil {
		return nil, err
	}
	return &Extractor{source: source, network: network, bridgeSource: flare}, nil
}

func (e *Extractor) Extract(ctx context.Context, in Intent, text string) (Outcome, error) {
	switch in {
	case SendToken, SwapToken, CrossChainSwap:
	default:
		return nil, clierr.New(clierr.CodeUnknownIntent, fmt.Sprintf("no parameters to extract for %s", in))
	}
	fields, err := e.source.Fields(ctx, in, text)
	if err != nil {
		return nil, err
	}
	switch in {
	case SendToken:
		return e.send(fields), nil
	case SwapToken:
		return e.swap(fields)
	default:
		return e.crossChain(fields)
	}
}

func (e *Extractor) send(f Fields) Outcome {
	var missing []string
	if f.ToAddress == nil || !id.IsAddress(strings.TrimSpace(*f.ToAddress)) {
		missing = append(missing, "to_address")
	}
	if !positive(f.Amount) {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return NeedsMoreInfo{Intent: SendToken, Missing: missing}
	}
	return ParametersReady{Params: SendParams{ToAddress: strings.TrimSpace(*f.ToAddress), Amount: *f.Amount}}
}

func (e *Extractor) swap(f Fields) (Outcome, error) {
	var missing []string
	if blank(f.FromToken) {
		missing = append(missing, "from_token")
	}
	if blank(f.ToToken) {
		missing = append(missing, "to_token")
	}
	if f.Amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return NeedsMoreInfo{Intent: SwapToken, Missing: missing}, nil
	}
	if !positive(f.Amount) {
		return nil, clierr.New(clierr.CodeValidation, "swap amount must be a positive number")
	}
	from, err := e.network.Token(*f.FromToken)
	if err != nil {
		return nil, err
	}
	to, err := e.network.Token(*f.ToToken)
	if err != nil {
		return nil, err
	}
	if from.Symbol == to.Symbol {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("cannot swap %s for itself", from.Symbol))
	}
	return ParametersReady{Params: SwapParams{FromToken: from, ToToken: to, Amount: *f.Amount}}, nil
}

// crossChain only accepts the supported pair. Omitted tokens mean that pair;
// any other token is rejected rather than corrected.
func (e *Extractor) crossChain(f Fields) (Outcome, error) {
	if !positive(f.Amount) {
		return NeedsMoreInfo{Intent: CrossChainSwap, Missing: []string{"amount"}}, nil
	}
	native := e.bridgeSource.NativeSymbol
	from := native
	if !blank(f.FromToken) {
		tok, err := e.bridgeSource.Token(*f.FromToken)
		if err != nil || tok.Symbol != native {
			return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("cross-chain swaps must send %s, got %q", native, *f.FromToken))
		}
	}
	to := bridge.DestinationAsset
	if !blank(f.ToToken) && id.NormalizeSymbol(*f.ToToken) != bridge.DestinationAsset {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("cross-chain swaps must receive %s, got %q", bridge.DestinationAsset, *f.ToToken))
	}
	return ParametersReady{Params: CrossChainParams{FromToken: from, ToToken: to, Amount: *f.Amount}}, nil
}

func positive(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0
}

func blank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

// ModelFieldSource extracts fields with a language model.
type ModelFieldSource struct {
	client llm.Client
}

func NewModelFieldSource(client llm.Client) *ModelFieldSource {
	return &ModelFieldSource{client: client}
}

func (m *ModelFieldSource) Fields(ctx context.Context, in Intent, text string) (Fields, error) {
	req := llm.Request{}
	switch in {
	case SendToken:
		req.Prompt, req.Schema = render(sendPrompt, text), sendSchema
	case SwapToken:
		req.Prompt, req.Schema = render(swapPrompt, text), swapSchema
	case CrossChainSwap:
		req.Prompt, req.Schema = render(crossChainPrompt, text), swapSchema
	default:
		return Fields{}, clierr.New(clierr.CodeUnknownIntent, fmt.Sprintf("no extraction prompt for %s", in))
	}
	zero := float32(0)
	req.Temperature = &zero
	raw, err := m.client.Generate(ctx, req)
	if err != nil {
		return Fields{}, err
	}
	var out Fields
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return Fields{}, err
	}
	return out, nil
}
