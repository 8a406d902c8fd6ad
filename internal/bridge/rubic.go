// Package bridge quotes and packages cross-chain swaps through the Rubic
// route aggregation API.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/httpx"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/registry"
)

const (
	DefaultQuoteTTL = time.Minute

	SelectFirst = "first"
	SelectBest  = "best"
)

// DestinationAsset is the fixed asset received on the destination chain.
const DestinationAsset = "USDC"

// Quote is an accepted route proposal. It is trusted until ExpiresAt and is
// not re-checked against the network when executed.
type Quote struct {
	ID                   string          `json:"id"`
	InputAmount          float64         `json:"input_amount"`
	InputBaseUnits       string          `json:"input_base_units"`
	ExpectedOutput       string          `json:"expected_output"`
	SourceChain          string          `json:"source_chain"`
	SourceChainID        int64           `json:"source_chain_id"`
	DestinationChain     string          `json:"destination_chain"`
	DestinationChainID   int64           `json:"destination_chain_id"`
	Sender               string          `json:"sender"`
	RawTrade             json.RawMessage `json:"raw_trade,omitempty"`
	TransactionTemplate  json.RawMessage `json:"transaction_template,omitempty"`
	FetchedAt            time.Time       `json:"fetched_at"`
	ExpiresAt            time.Time       `json:"expires_at"`
	CandidatesConsidered int             `json:"candidates_considered"`
}

// TransactionRequest is the call the aggregator wants the sender to make on
// the source chain.
type TransactionRequest struct {
	To       string        `json:"to"`
	Data     hexutil.Bytes `json:"data"`
	Value    *big.Int      `json:"value"`
	GasLimit uint64        `json:"gas_limit,omitempty"`
}

type ExecutionResult struct {
	QuoteID          string             `json:"quote_id"`
	Transaction      TransactionRequest `json:"transaction"`
	FromAmount       float64            `json:"from_amount"`
	ExpectedOutput   string             `json:"expected_output"`
	SourceChain      string             `json:"source_chain"`
	DestinationChain string             `json:"destination_chain"`
}

type Endpoint struct {
	Name    string `json:"name"`
	ChainID string `json:"chain_id"`
	Token   string `json:"token"`
}

type SupportedNetworks struct {
	Source      Endpoint `json:"source"`
	Destination Endpoint `json:"destination"`
}

type Options struct {
	BaseURL        string
	QuoteTTL       time.Duration
	RouteSelection string
	HTTP           *httpx.Client
	Logger         *slog.Logger
	Now            func() time.Time
}

type Client struct {
	http        *httpx.Client
	baseURL     string
	ttl         time.Duration
	selection   string
	source      registry.Network
	destination registry.Network
	log         *slog.Logger
	now         func() time.Time
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = registry.RubicBaseURL
	}
	if !registry.IsAllowedBridgeURL(baseURL) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("bridge base url %q is not allowed", baseURL))
	}
	selection := strings.ToLower(strings.TrimSpace(opts.RouteSelection))
	switch selection {
	case "":
		selection = SelectFirst
	case SelectFirst, SelectBest:
	default:
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported route selection %q", opts.RouteSelection))
	}
	source, err := registry.LookupNetwork("flare")
	if err != nil {
		return nil, err
	}
	destination, err := registry.LookupNetwork("arbitrum")
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:        opts.HTTP,
		baseURL:     baseURL,
		ttl:         opts.QuoteTTL,
		selection:   selection,
		source:      source,
		destination: destination,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if c.http == nil {
		c.http = httpx.New(15 * time.Second)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultQuoteTTL
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Client) SupportedNetworks() SupportedNetworks {
	return SupportedNetworks{
		Source: Endpoint{
			Name:    c.source.Name,
			ChainID: fmt.Sprintf("%d", c.source.ChainID),
			Token:   c.source.NativeSymbol,
		},
		Destination: Endpoint{
			Name:    c.destination.Name,
			ChainID: fmt.Sprintf("%d", c.destination.ChainID),
			Token:   DestinationAsset,
		},
	}
}

type tradesRequest struct {
	FromTokenAddress string `json:"fromTokenAddress"`
	ToTokenAddress   string `json:"toTokenAddress"`
	FromAmount       string `json:"fromAmount"`
	FromAddress      string `json:"fromAddress"`
	FromChainID      int64  `json:"fromChainId"`
	ToChainID        int64  `json:"toChainId"`
}

type tradesResponse struct {
	Result []json.RawMessage `json:"result"`
}

type candidate struct {
	Trade json.RawMessage `json:"trade"`
	Error json.RawMessage `json:"error"`
}

type trade struct {
	ToTokenAmount      json.RawMessage `json:"toTokenAmount"`
	TransactionRequest json.RawMessage `json:"transactionRequest"`
}

// GetQuote asks the aggregator for native -> destination asset routes sent
// from sender and returns the selected candidate.
func (c *Client) GetQuote(ctx context.Context, sender string, amount float64) (Quote, error) {
	if _, err := id.ParseAddress(sender); err != nil {
		return Quote{}, err
	}
	amountUnits, err := id.ToBaseUnits(amount, c.source.NativeToken().Decimals)
	if err != nil {
		return Quote{}, err
	}
	dest, err := c.destination.Token(DestinationAsset)
	if err != nil {
		return Quote{}, err
	}
	body, err := json.Marshal(tradesRequest{
		FromTokenAddress: registry.NativeTokenAddress,
		ToTokenAddress:   dest.Address,
		FromAmount:       amountUnits.String(),
		FromAddress:      sender,
		FromChainID:      c.source.ChainID,
		ToChainID:        c.destination.ChainID,
	})
	if err != nil {
		return Quote{}, clierr.Wrap(clierr.CodeInternal, "encode trades request", err)
	}

	var resp tradesResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+registry.RubicTradesPath, body, nil, &resp); err != nil {
		return Quote{}, quoteError(err)
	}
	c.log.Debug("bridge candidates received", "count", len(resp.Result))

	chosen, picked, err := c.selectCandidate(resp.Result)
	if err != nil {
		return Quote{}, err
	}
	fetched := c.now().UTC()
	return Quote{
		ID:                   uuid.NewString(),
		InputAmount:          amount,
		InputBaseUnits:       amountUnits.String(),
		ExpectedOutput:       rawNumber(chosen.trade.ToTokenAmount),
		SourceChain:          c.source.Name,
		SourceChainID:        c.source.ChainID,
		DestinationChain:     c.destination.Name,
		DestinationChainID:   c.destination.ChainID,
		Sender:               sender,
		RawTrade:             chosen.Trade,
		TransactionTemplate:  chosen.trade.TransactionRequest,
		FetchedAt:            fetched,
		ExpiresAt:            fetched.Add(c.ttl),
		CandidatesConsidered: picked,
	}, nil
}

type decodedCandidate struct {
	candidate
	trade trade
}

// selectCandidate applies the NoRoutes rule to the first candidate before any
// comparison: an empty list or an errored head always fails.
func (c *Client) selectCandidate(raw []json.RawMessage) (decodedCandidate, int, error) {
	if len(raw) == 0 {
		return decodedCandidate{}, 0, noRoutes("no routes")
	}
	first, ok := decodeCandidate(raw[0])
	if !ok {
		return decodedCandidate{}, 0, noRoutes("no routes")
	}
	if reason := errorReason(first.Error); reason != "" {
		return decodedCandidate{}, 0, noRoutes(reason)
	}
	if first.empty() {
		return decodedCandidate{}, 0, noRoutes("no routes")
	}
	if err := first.validate(); err != nil {
		return decodedCandidate{}, 0, err
	}
	if c.selection != SelectBest {
		return first, 1, nil
	}

	best := first
	bestOut := outputAmount(first.trade.ToTokenAmount)
	considered := 1
	for _, item := range raw[1:] {
		next, ok := decodeCandidate(item)
		if !ok || errorReason(next.Error) != "" || next.validate() != nil {
			continue
		}
		considered++
		out := outputAmount(next.trade.ToTokenAmount)
		if out != nil && (bestOut == nil || out.Cmp(bestOut) > 0) {
			best, bestOut = next, out
		}
	}
	return best, considered, nil
}

func decodeCandidate(raw json.RawMessage) (decodedCandidate, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decodedCandidate{}, false
	}
	var out decodedCandidate
	if err := json.Unmarshal(raw, &out.candidate); err != nil {
		return decodedCandidate{}, false
	}
	if len(out.Trade) > 0 && string(out.Trade) != "null" {
		if err := json.Unmarshal(out.Trade, &out.trade); err != nil {
			return decodedCandidate{}, false
		}
	}
	return out, true
}

// empty reports a candidate that carries no trade to execute.
func (d decodedCandidate) empty() bool {
	tx := strings.TrimSpace(string(d.trade.TransactionRequest))
	return tx == "" || tx == "null" || tx == "{}"
}

func (d decodedCandidate) validate() error {
	if len(d.trade.TransactionRequest) == 0 || string(d.trade.TransactionRequest) == "null" {
		return clierr.New(clierr.CodeQuote, "failed to get quote: route is missing transactionRequest")
	}
	if rawNumber(d.trade.ToTokenAmount) == "" {
		return clierr.New(clierr.CodeQuote, "failed to get quote: route is missing toTokenAmount")
	}
	return nil
}

// Execute extracts the transaction template from an accepted quote.
func (c *Client) Execute(quote Quote) (ExecutionResult, error) {
	if quote.ExpiresAt.IsZero() || !c.now().Before(quote.ExpiresAt) {
		return ExecutionResult{}, clierr.New(clierr.CodeSwap, "error executing cross-chain swap: quote expired, request a new one")
	}
	req, err := decodeTransactionRequest(quote.TransactionTemplate)
	if err != nil {
		return ExecutionResult{}, clierr.Wrap(clierr.CodeSwap, "error executing cross-chain swap", err)
	}
	return ExecutionResult{
		QuoteID:          quote.ID,
		Transaction:      req,
		FromAmount:       quote.InputAmount,
		ExpectedOutput:   quote.ExpectedOutput,
		SourceChain:      quote.SourceChain,
		DestinationChain: quote.DestinationChain,
	}, nil
}

func decodeTransactionRequest(raw json.RawMessage) (TransactionRequest, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return TransactionRequest{}, fmt.Errorf("quote has no transaction template")
	}
	var wire struct {
		To       string          `json:"to"`
		Data     string          `json:"data"`
		Value    json.RawMessage `json:"value"`
		GasLimit json.RawMessage `json:"gasLimit"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return TransactionRequest{}, fmt.Errorf("decode transaction template: %w", err)
	}
	if !id.IsAddress(wire.To) {
		return TransactionRequest{}, fmt.Errorf("transaction template has invalid target %q", wire.To)
	}
	var data []byte
	if d := strings.TrimSpace(wire.Data); d != "" && d != "0x" {
		decoded, err := hexutil.Decode(d)
		if err != nil {
			return TransactionRequest{}, fmt.Errorf("transaction template data: %w", err)
		}
		data = decoded
	}
	value, err := id.ParseQuantity(rawNumber(wire.Value))
	if err != nil {
		return TransactionRequest{}, fmt.Errorf("transaction template value: %w", err)
	}
	var gas uint64
	if s := rawNumber(wire.GasLimit); s != "" {
		g, err := id.ParseQuantity(s)
		if err != nil || !g.IsUint64() {
			return TransactionRequest{}, fmt.Errorf("transaction template has invalid gasLimit %q", s)
		}
		gas = g.Uint64()
	}
	return TransactionRequest{To: wire.To, Data: data, Value: value, GasLimit: gas}, nil
}

// rawNumber renders a JSON string or number as its decimal text.
func rawNumber(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func outputAmount(raw json.RawMessage) *big.Float {
	s := rawNumber(raw)
	if s == "" {
		return nil
	}
	f, ok := new(big.Float).SetString(s)
	if !ok {
		return nil
	}
	return f
}

// errorReason returns a non-empty reason when a candidate carries an error.
func errorReason(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "false", `""`, "{}":
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Reason != "" {
			return obj.Reason
		}
	}
	return trimmed
}

func noRoutes(reason string) error {
	return clierr.New(clierr.CodeNoRoutes, "no valid routes found: "+reason)
}

func quoteError(err error) error {
	if statusErr, ok := httpx.AsStatusError(err); ok {
		return clierr.Wrap(clierr.CodeQuote, "failed to get quote", statusErr)
	}
	return clierr.Wrap(clierr.CodeQuote, "failed to get quote", err)
}
