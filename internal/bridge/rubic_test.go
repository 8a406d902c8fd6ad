package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/httpx"
)

const sender = "0x00000000000000000000000000000000000000aa"

const txTemplate = `{"to":"0x3335733c454805df6a77f825f266e136fb4a3333","data":"0xabcdef","value":"2500000000000000000","gasLimit":"0x3d090"}`

func newTestClient(t *testing.T, handler http.HandlerFunc, selection string, now func() time.Time) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:        srv.URL,
		RouteSelection: selection,
		HTTP:           httpx.New(2 * time.Second),
		Now:            now,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestGetQuoteRequestShapeAndFirstCandidate(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cross-chain/trades" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"result":[
			{"trade":{"toTokenAmount":"12.5","transactionRequest":`+txTemplate+`}},
			{"trade":{"toTokenAmount":"99","transactionRequest":`+txTemplate+`}}
		]}`)
	}, "", fixedClock(time.Unix(1_700_000_000, 0)))

	quote, err := c.GetQuote(context.Background(), sender, 2.5)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	want := map[string]any{
		"fromTokenAddress": "0x0000000000000000000000000000000000000000",
		"toTokenAddress":   "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8",
		"fromAmount":       "2500000000000000000",
		"fromAddress":      sender,
		"fromChainId":      float64(14),
		"toChainId":        float64(42161),
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("request field %s: expected %v, got %v", key, value, got[key])
		}
	}
	if quote.ExpectedOutput != "12.5" {
		t.Fatalf("first candidate must be selected, got %s", quote.ExpectedOutput)
	}
	if quote.SourceChainID != 14 || quote.DestinationChainID != 42161 || quote.InputAmount != 2.5 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.ID == "" || !quote.ExpiresAt.Equal(quote.FetchedAt.Add(DefaultQuoteTTL)) {
		t.Fatalf("unexpected quote metadata: %+v", quote)
	}
}

func TestGetQuoteBestSelection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":[
			{"trade":{"toTokenAmount":"12.5","transactionRequest":`+txTemplate+`}},
			{"error":"insufficient liquidity"},
			{"trade":{"toTokenAmount":13.75,"transactionRequest":`+txTemplate+`}}
		]}`)
	}, SelectBest, nil)

	quote, err := c.GetQuote(context.Background(), sender, 1)
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.ExpectedOutput != "13.75" {
		t.Fatalf("expected highest output, got %s", quote.ExpectedOutput)
	}
	if quote.CandidatesConsidered != 2 {
		t.Fatalf("errored candidates must be skipped, considered %d", quote.CandidatesConsidered)
	}
}

func TestGetQuoteNoRoutes(t *testing.T) {
	bodies := []string{
		`{"result":[]}`,
		`{}`,
		`{"result":[null]}`,
		`{"result":[{"error":"no liquidity"},{"trade":{"toTokenAmount":"1","transactionRequest":` + txTemplate + `}}]}`,
		`{"result":[{"error":{"message":"amount too low"}}]}`,
		`{"result":[{}]}`,
		`{"result":[{"trade":null}]}`,
		`{"result":[{"trade":{}},{"trade":{"toTokenAmount":"1","transactionRequest":` + txTemplate + `}}]}`,
		`{"result":[{"trade":{"toTokenAmount":"5"}}]}`,
	}
	for _, selection := range []string{SelectFirst, SelectBest} {
		for _, body := range bodies {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}, selection, nil)
			_, err := c.GetQuote(context.Background(), sender, 1)
			if !clierr.Is(err, clierr.CodeNoRoutes) {
				t.Fatalf("%s %s: expected no routes error, got %v", selection, body, err)
			}
		}
	}
}

func TestGetQuoteErrorStatusCarriesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"fromAmount too small"}`)
	}, "", nil)

	_, err := c.GetQuote(context.Background(), sender, 1)
	if !clierr.Is(err, clierr.CodeQuote) {
		t.Fatalf("expected quote error, got %v", err)
	}
	if !strings.Contains(err.Error(), "fromAmount too small") {
		t.Fatalf("expected upstream body in error, got %v", err)
	}
}

func TestGetQuoteValidatesInput(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ }, "", nil)
	if _, err := c.GetQuote(context.Background(), "0x12", 1); !clierr.Is(err, clierr.CodeValidation) {
		t.Fatalf("expected validation error for sender, got %v", err)
	}
	if _, err := c.GetQuote(context.Background(), sender, 0); !clierr.Is(err, clierr.CodeValidation) {
		t.Fatalf("expected validation error for amount, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("invalid input must not reach the aggregator")
	}
}

func TestExecute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c, err := New(Options{Now: fixedClock(now)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	quote := Quote{
		ID:                  "q1",
		InputAmount:         2.5,
		ExpectedOutput:      "12.5",
		SourceChain:         "Flare",
		DestinationChain:    "Arbitrum",
		TransactionTemplate: json.RawMessage(txTemplate),
		ExpiresAt:           now.Add(time.Second),
	}
	res, err := c.Execute(quote)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Transaction.To != "0x3335733c454805df6a77f825f266e136fb4a3333" || res.Transaction.GasLimit != 250000 {
		t.Fatalf("unexpected transaction: %+v", res.Transaction)
	}
	if res.Transaction.Value.String() != "2500000000000000000" || len(res.Transaction.Data) != 3 {
		t.Fatalf("unexpected value/data: %+v", res.Transaction)
	}
	if res.ExpectedOutput != "12.5" || res.FromAmount != 2.5 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteRejectsExpiredOrBrokenQuote(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c, err := New(Options{Now: fixedClock(now)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	expired := Quote{TransactionTemplate: json.RawMessage(txTemplate), ExpiresAt: now}
	if _, err := c.Execute(expired); !clierr.Is(err, clierr.CodeSwap) {
		t.Fatalf("expected swap error for expired quote, got %v", err)
	}
	broken := Quote{TransactionTemplate: json.RawMessage(`{"to":"nope"}`), ExpiresAt: now.Add(time.Minute)}
	if _, err := c.Execute(broken); !clierr.Is(err, clierr.CodeSwap) {
		t.Fatalf("expected swap error for broken template, got %v", err)
	}
}

func TestNewRejectsUnknownHosts(t *testing.T) {
	if _, err := New(Options{BaseURL: "https://evil.example.com/api"}); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := New(Options{RouteSelection: "cheapest"}); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for selection, got %v", err)
	}
}

func TestSupportedNetworks(t *testing.T) {
	c, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := c.SupportedNetworks()
	if got.Source.ChainID != "14" || got.Source.Token != "FLR" || got.Destination.ChainID != "42161" || got.Destination.Token != "USDC" {
		t.Fatalf("unexpected networks: %+v", got)
	}
}
