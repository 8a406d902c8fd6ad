package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/defai/internal/bridge"
	"github.com/ggonzalez94/defai/internal/chain"
	"github.com/ggonzalez94/defai/internal/chain/chaintest"
	"github.com/ggonzalez94/defai/internal/httpx"
	"github.com/ggonzalez94/defai/internal/intent"
	"github.com/ggonzalez94/defai/internal/llm"
	"github.com/ggonzalez94/defai/internal/pending"
	"github.com/ggonzalez94/defai/internal/registry"
)

const (
	wallet    = "0x00000000000000000000000000000000000000aa"
	recipient = "0xABCDabcdABCDabcdABCDabcdABCDabcdABCD1234"
	txHash    = "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	template  = `{"to":"0x3335733c454805df6a77f825f266e136fb4a3333","data":"0xabcdef","value":"2500000000000000000","gasLimit":"0x3d090"}`
)

type fakeChat struct {
	reply string
	err   error
	last  llm.Request
}

func (f *fakeChat) Generate(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

type harness struct {
	orc   *Orchestrator
	rpc   *chaintest.Server
	queue *pending.MemoryQueue
}

type options struct {
	network    string
	bridgeURL  string
	chat       llm.Client
	classifier Classifier
	extractor  Extractor
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	if opts.network == "" {
		opts.network = "flare"
	}
	network, err := registry.LookupNetwork(opts.network)
	if err != nil {
		t.Fatalf("lookup network: %v", err)
	}
	rpc := chaintest.NewServer(t, network.ChainID)
	client, err := chain.Dial(context.Background(), rpc.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)

	extractor, err := intent.NewExtractor(intent.Keyword{}, network)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	deps := Deps{
		Network:    network,
		Reader:     client,
		Classifier: intent.NewClassifier(intent.Keyword{}),
		Extractor:  extractor,
		Queue:      pending.NewMemoryQueue(),
		Submitter:  client,
		Chat:       opts.chat,
	}
	if opts.classifier != nil {
		deps.Classifier = opts.classifier
	}
	if opts.extractor != nil {
		deps.Extractor = opts.extractor
	}
	if opts.bridgeURL != "" {
		b, err := bridge.New(bridge.Options{BaseURL: opts.bridgeURL, HTTP: httpx.New(2 * time.Second)})
		if err != nil {
			t.Fatalf("bridge.New failed: %v", err)
		}
		deps.Bridge = b
	}
	orc, err := New(deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &harness{orc: orc, rpc: rpc, queue: deps.Queue.(*pending.MemoryQueue)}
}

func bridgeServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func mustABI(t *testing.T, raw string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return parsed
}

func TestSendStagesTransferPreview(t *testing.T) {
	h := newHarness(t, options{})
	s := NewSession(wallet)

	reply := h.orc.Handle(context.Background(), s, "send 1.5 flr to "+recipient)
	if reply.Intent != "SEND_TOKEN" {
		t.Fatalf("unexpected intent: %s", reply.Intent)
	}
	for _, part := range []string{"1.5", recipient, "Type CONFIRM to proceed."} {
		if !strings.Contains(reply.Text, part) {
			t.Fatalf("preview %q missing %q", reply.Text, part)
		}
	}
	staged, ok, err := h.queue.Take(context.Background(), s.ID)
	if err != nil || !ok {
		t.Fatalf("expected staged transaction, ok=%v err=%v", ok, err)
	}
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if staged.Kind != pending.KindTransfer || staged.Unsigned.Value.Cmp(want) != 0 {
		t.Fatalf("unexpected staged transaction: %+v", staged)
	}
	if !strings.EqualFold(staged.Unsigned.To, recipient) || staged.OriginMessage != "send 1.5 flr to "+recipient {
		t.Fatalf("unexpected staged fields: %+v", staged)
	}
}

func TestSendNeedsWalletAndFields(t *testing.T) {
	h := newHarness(t, options{})
	if reply := h.orc.Handle(context.Background(), NewSession(""), "send 1 flr to "+recipient); reply.Text != WalletNotConnected {
		t.Fatalf("unexpected reply without wallet: %q", reply.Text)
	}
	s := NewSession(wallet)
	if reply := h.orc.Handle(context.Background(), s, "send 2 flr"); reply.Text != intent.SendFollowUp {
		t.Fatalf("expected follow-up, got %q", reply.Text)
	}
	if _, ok, _ := h.queue.Take(context.Background(), s.ID); ok {
		t.Fatalf("nothing should be staged for an incomplete transfer")
	}
}

func TestSwapRoutesThroughWrappedNative(t *testing.T) {
	h := newHarness(t, options{})
	router := mustABI(t, registry.BlazeSwapRouterABI)
	h.rpc.Handle("eth_call", func(params []json.RawMessage) (any, error) {
		data, err := chaintest.CallData(params)
		if err != nil || len(data) < 4 || !bytes.Equal(data[:4], router.Methods["getAmountsOut"].ID) {
			return nil, fmt.Errorf("unexpected call")
		}
		args, err := router.Methods["getAmountsOut"].Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		path := args[1].([]common.Address)
		if len(path) != 2 || path[0] != common.HexToAddress("0x1D80c49BbBCd1C0911346656B529DF9E5c2F783d") {
			t.Errorf("swap path must start at WFLR, got %v", path)
		}
		out, err := router.Methods["getAmountsOut"].Outputs.Pack([]*big.Int{args[0].(*big.Int), big.NewInt(1_234_567)})
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(out), nil
	})
	s := NewSession(wallet)

	reply := h.orc.Handle(context.Background(), s, "swap 10 flr for usdc.e")
	if !strings.HasPrefix(reply.Text, "Ready to swap 10 FLR for USDC.E.") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "- Minimum received: 1.222221 USDC.E") || !strings.Contains(reply.Text, "- From: 0x0000...00aa") {
		t.Fatalf("swap details missing: %q", reply.Text)
	}
	if reply.Staged == nil || reply.Staged.Kind != pending.KindSwap || reply.Staged.Unsigned.Gas != 300_000 {
		t.Fatalf("unexpected staged swap: %+v", reply.Staged)
	}
}

func TestSwapLiquidityFailure(t *testing.T) {
	h := newHarness(t, options{})
	h.rpc.Handle("eth_call", chaintest.Fail("execution reverted"))
	reply := h.orc.Handle(context.Background(), NewSession(wallet), "swap 10 flr for usdc.e")
	if !strings.HasPrefix(reply.Text, "Error preparing swap: ") || !strings.Contains(reply.Text, "pool might not exist") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestSwapValidationReprompts(t *testing.T) {
	h := newHarness(t, options{})
	reply := h.orc.Handle(context.Background(), NewSession(wallet), "swap 10 flr for doge")
	if !strings.HasSuffix(reply.Text, intent.SwapFollowUp) {
		t.Fatalf("expected swap follow-up, got %q", reply.Text)
	}
	if reply := h.orc.Handle(context.Background(), NewSession(""), "swap 10 flr for usdc.e"); reply.Text != WalletNotConnected {
		t.Fatalf("unexpected reply without wallet: %q", reply.Text)
	}
}

func TestStakeCommand(t *testing.T) {
	h := newHarness(t, options{})
	reply := h.orc.Handle(context.Background(), NewSession(wallet), "stake 2.5 flr")
	if reply.Staged == nil || reply.Staged.Kind != pending.KindStake {
		t.Fatalf("expected staged stake, got %+v", reply)
	}
	tx := reply.Staged.Unsigned
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	if tx.Value.Cmp(want) != 0 || hexutil.Encode(tx.Data) != registry.SubmitSelector || tx.Gas != 200_000 {
		t.Fatalf("unexpected stake transaction: %+v", tx)
	}
	if !strings.Contains(reply.Text, "Ready to stake 2.5 FLR for sFLR.") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestStakeThroughSwapIntent(t *testing.T) {
	h := newHarness(t, options{})
	reply := h.orc.Handle(context.Background(), NewSession(wallet), "please swap 3 flr for sflr")
	if reply.Staged == nil || reply.Staged.Kind != pending.KindStake {
		t.Fatalf("expected staged stake, got %+v", reply)
	}
}

func TestBalance(t *testing.T) {
	h := newHarness(t, options{})
	staked := mustABI(t, registry.StakedFlareABI)
	h.rpc.Handle("eth_getBalance", chaintest.Result("0x1bc16d674ec80000"))
	h.rpc.Handle("eth_call", func([]json.RawMessage) (any, error) {
		out, err := staked.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_250_000_000_000_000_000))
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(out), nil
	})

	reply := h.orc.Handle(context.Background(), NewSession(wallet), "what's my balance?")
	want := "Your wallet (0x0000...00aa) has:\n\n2 FLR\n1.25 sFLR staked"
	if reply.Text != want {
		t.Fatalf("expected %q, got %q", want, reply.Text)
	}
	if reply := h.orc.Handle(context.Background(), NewSession(""), "balance"); reply.Text != BalanceWalletNotConnected {
		t.Fatalf("unexpected reply without wallet: %q", reply.Text)
	}
}

func TestBalanceReadFailure(t *testing.T) {
	h := newHarness(t, options{})
	h.rpc.Handle("eth_getBalance", chaintest.Fail("node down"))
	reply := h.orc.Handle(context.Background(), NewSession(wallet), "balance")
	if !strings.HasPrefix(reply.Text, "Error checking balance: ") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestCrossChainStagesBridgeCall(t *testing.T) {
	url := bridgeServer(t, http.StatusOK, `{"result":[{"trade":{"toTokenAmount":"12.5","transactionRequest":`+template+`}}]}`)
	h := newHarness(t, options{bridgeURL: url})
	s := NewSession(wallet)

	reply := h.orc.Handle(context.Background(), s, "bridge 2.5 flr to usdc on arbitrum")
	if !strings.HasPrefix(reply.Text, "Ready to swap 2.5 FLR to USDC on Arbitrum") || !strings.Contains(reply.Text, "Expected output: 12.5 USDC") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if reply.Staged == nil || reply.Staged.Kind != pending.KindCrossChain {
		t.Fatalf("expected staged cross-chain swap, got %+v", reply)
	}
	tx := reply.Staged.Unsigned
	if tx.Gas != 250_000 || hexutil.Encode(tx.Data) != "0xabcdef" || tx.Nonce != 7 {
		t.Fatalf("unexpected bridge transaction: %+v", tx)
	}
	if !strings.EqualFold(tx.To, "0x3335733c454805df6a77f825f266e136fb4a3333") {
		t.Fatalf("unexpected target: %s", tx.To)
	}
}

func TestCrossChainErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		prefix string
	}{
		{"no routes", http.StatusOK, `{"result":[]}`, NoRoutesFound},
		{"errored head", http.StatusOK, `{"result":[{"error":{"reason":"amount too low"}}]}`, NoRoutesFound},
		{"upstream failure", http.StatusBadGateway, `bad gateway`, "Error preparing cross-chain swap: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, options{bridgeURL: bridgeServer(t, tc.status, tc.body)})
			s := NewSession(wallet)
			reply := h.orc.Handle(context.Background(), s, "bridge 2.5 flr to arbitrum")
			if !strings.HasPrefix(reply.Text, tc.prefix) {
				t.Fatalf("expected prefix %q, got %q", tc.prefix, reply.Text)
			}
			if _, ok, _ := h.queue.Take(context.Background(), s.ID); ok {
				t.Fatalf("nothing should be staged")
			}
		})
	}
}

func TestCrossChainGuards(t *testing.T) {
	url := bridgeServer(t, http.StatusOK, `{"result":[]}`)
	h := newHarness(t, options{bridgeURL: url})
	if reply := h.orc.Handle(context.Background(), NewSession(""), "bridge 2 flr to arbitrum"); reply.Text != CrossChainWalletNotConnected {
		t.Fatalf("unexpected reply without wallet: %q", reply.Text)
	}
	if reply := h.orc.Handle(context.Background(), NewSession(wallet), "bridge some flr to arbitrum"); reply.Text != InvalidSwapAmount {
		t.Fatalf("unexpected reply without amount: %q", reply.Text)
	}
	if reply := h.orc.Handle(context.Background(), NewSession(wallet), "bridge 2 flr to weth on arbitrum"); !strings.HasPrefix(reply.Text, "Error preparing cross-chain swap: ") {
		t.Fatalf("unexpected reply for wrong token: %q", reply.Text)
	}

	testnet := newHarness(t, options{network: "coston2", bridgeURL: url})
	if reply := testnet.orc.Handle(context.Background(), NewSession(wallet), "bridge 2 flr to arbitrum"); reply.Text != CrossChainUnavailable {
		t.Fatalf("unexpected reply on testnet: %q", reply.Text)
	}
}

func TestConfirmSubmitsAndClears(t *testing.T) {
	h := newHarness(t, options{})
	var sent map[string]string
	h.rpc.Handle("eth_sendTransaction", func(params []json.RawMessage) (any, error) {
		args, err := chaintest.CallArgs(params)
		sent = args
		return txHash, err
	})
	s := NewSession(wallet)
	if reply := h.orc.Handle(context.Background(), s, "Confirm"); reply.Text != NothingToConfirm {
		t.Fatalf("expected nothing to confirm, got %q", reply.Text)
	}
	h.orc.Handle(context.Background(), s, "send 1.5 flr to "+recipient)

	reply := h.orc.Handle(context.Background(), s, "  confirm ")
	want := "[See transaction on Explorer](https://flare-explorer.flare.network/tx/" + txHash + ")"
	if !strings.Contains(reply.Text, want) || reply.TxHash != txHash {
		t.Fatalf("unexpected confirmation reply: %+v", reply)
	}
	if sent["value"] != "0x14d1120d7b160000" || sent["nonce"] != "0x7" || !strings.EqualFold(sent["to"], recipient) {
		t.Fatalf("unexpected submitted transaction: %v", sent)
	}
	if _, ok, _ := h.queue.Take(context.Background(), s.ID); ok {
		t.Fatalf("stage must be cleared after submission")
	}
}

func TestConfirmFailureKeepsStage(t *testing.T) {
	h := newHarness(t, options{})
	h.rpc.Handle("eth_sendTransaction", chaintest.Fail("user rejected"))
	s := NewSession(wallet)
	h.orc.Handle(context.Background(), s, "send 1 flr to "+recipient)

	reply := h.orc.Handle(context.Background(), s, "CONFIRM")
	if !strings.HasPrefix(reply.Text, "Error submitting transaction: ") || !strings.Contains(reply.Text, "still staged") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if _, ok, _ := h.queue.Take(context.Background(), s.ID); !ok {
		t.Fatalf("stage must survive a failed submission")
	}
}

func TestNewBuildOverwritesStage(t *testing.T) {
	h := newHarness(t, options{})
	s := NewSession(wallet)
	first := h.orc.Handle(context.Background(), s, "send 1 flr to "+recipient)
	second := h.orc.Handle(context.Background(), s, "stake 2 flr")
	staged, ok, _ := h.queue.Take(context.Background(), s.ID)
	if !ok || staged.ID != second.Staged.ID || staged.ID == first.Staged.ID {
		t.Fatalf("latest build must replace the stage")
	}
	h.orc.Handle(context.Background(), s, "hello there")
	if staged, ok, _ = h.queue.Take(context.Background(), s.ID); !ok || staged.ID != second.Staged.ID {
		t.Fatalf("unrelated messages must not cancel the stage")
	}
}

func TestCommands(t *testing.T) {
	h := newHarness(t, options{})
	s := NewSession(wallet)
	h.orc.Handle(context.Background(), s, "send 1 flr to "+recipient)
	h.orc.Handle(context.Background(), s, "please verify the enclave")
	if !s.AttestationRequested {
		t.Fatalf("attestation request must be recorded")
	}

	if reply := h.orc.Handle(context.Background(), s, "/reset"); reply.Text != ResetComplete {
		t.Fatalf("unexpected reset reply: %q", reply.Text)
	}
	if s.AttestationRequested {
		t.Fatalf("reset must clear the attestation flag")
	}
	if _, ok, _ := h.queue.Take(context.Background(), s.ID); ok {
		t.Fatalf("reset must clear the stage")
	}
	if reply := h.orc.Handle(context.Background(), s, "/launch"); reply.Text != UnknownCommand {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestConversational(t *testing.T) {
	h := newHarness(t, options{})
	if reply := h.orc.Handle(context.Background(), NewSession(""), "hello there"); reply.Text != intent.ConversationalFallback {
		t.Fatalf("expected fallback without a model, got %q", reply.Text)
	}

	chat := &fakeChat{reply: " Hi! I can help with FLR. "}
	h = newHarness(t, options{chat: chat})
	reply := h.orc.Handle(context.Background(), NewSession(""), "hello there")
	if reply.Text != "Hi! I can help with FLR." || chat.last.System != intent.Persona {
		t.Fatalf("unexpected conversational reply: %q (%+v)", reply.Text, chat.last)
	}

	chat.err = errors.New("quota exceeded")
	if reply := h.orc.Handle(context.Background(), NewSession(""), "hello there"); reply.Text != intent.ConversationalFallback {
		t.Fatalf("expected fallback on model failure, got %q", reply.Text)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t, options{})
	a, b := NewSession(wallet), NewSession(wallet)
	h.orc.Handle(context.Background(), a, "send 1 flr to "+recipient)
	if reply := h.orc.Handle(context.Background(), b, "CONFIRM"); reply.Text != NothingToConfirm {
		t.Fatalf("another session's stage must not be visible, got %q", reply.Text)
	}
}

type fixedClassifier struct{ in intent.Intent }

func (f fixedClassifier) Classify(context.Context, string) intent.Intent { return f.in }

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, intent.Intent, string) (intent.Outcome, error) {
	panic("extractor exploded")
}

func TestStakeTextDoesNotOverrideStrongerIntent(t *testing.T) {
	h := newHarness(t, options{})
	h.rpc.Handle("eth_getBalance", chaintest.Result("0x1bc16d674ec80000"))
	h.rpc.Handle("eth_call", chaintest.Fail("no staking contract"))

	reply := h.orc.Handle(context.Background(), NewSession(wallet), "what is my balance if i stake 2 flr")
	if reply.Intent != intent.CheckBalance.String() || reply.Staged != nil {
		t.Fatalf("balance must win over the stake command, got %+v", reply)
	}
	if !strings.HasPrefix(reply.Text, "Your wallet (0x0000...00aa) has:") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	chatty := newHarness(t, options{classifier: fixedClassifier{in: intent.Conversational}})
	if reply := chatty.orc.Handle(context.Background(), NewSession(wallet), "stake 1 flr"); reply.Staged == nil || reply.Staged.Kind != pending.KindStake {
		t.Fatalf("stake command should still stage from conversational text, got %+v", reply)
	}
}

func TestHandleAlwaysReplies(t *testing.T) {
	h := newHarness(t, options{extractor: panickingExtractor{}})
	if reply := h.orc.Handle(context.Background(), NewSession(wallet), "send 1 flr to "+recipient); reply.Text != ProcessingError {
		t.Fatalf("expected generic fallback after a panic, got %q", reply.Text)
	}

	unknown := newHarness(t, options{classifier: fixedClassifier{in: intent.Intent(99)}})
	if reply := unknown.orc.Handle(context.Background(), NewSession(wallet), "anything"); reply.Text != ProcessingError {
		t.Fatalf("expected generic fallback for an unhandled intent, got %q", reply.Text)
	}

	if reply := unknown.orc.Handle(context.Background(), nil, "hello"); reply.Text != ProcessingError {
		t.Fatalf("expected generic fallback without a session, got %q", reply.Text)
	}
}

func TestConnectWallet(t *testing.T) {
	h := newHarness(t, options{})
	h.rpc.Handle("eth_getBalance", chaintest.Result("0x1bc16d674ec80000"))
	h.rpc.Handle("eth_call", chaintest.Fail("no staking contract"))

	s := NewSession("")
	reply := h.orc.ConnectWallet(context.Background(), s, " "+wallet+" ")
	if s.Wallet != wallet {
		t.Fatalf("wallet not attached: %q", s.Wallet)
	}
	want := "Wallet connected: 0x0000...00aa\nNetwork: Flare (chain id 14, native FLR)\n\nYour wallet (0x0000...00aa) has:\n\n2 FLR"
	if reply.Text != want {
		t.Fatalf("expected %q, got %q", want, reply.Text)
	}

	other := NewSession("")
	if reply := h.orc.ConnectWallet(context.Background(), other, "0x12"); reply.Text != InvalidWallet || other.Wallet != "" {
		t.Fatalf("invalid address must be rejected, got %q wallet=%q", reply.Text, other.Wallet)
	}
}

func TestAnalyzePortfolio(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	chat := &fakeChat{reply: "Here you go:\n```json\n{\"risk_score\": 7.5, \"text\": \" Heavy in tech. \"}\n```"}
	h := newHarness(t, options{chat: chat})

	got := h.orc.AnalyzePortfolio(context.Background(), image, "image/png")
	if got.RiskScore != 7.5 || got.Text != "Heavy in tech." {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if len(chat.last.Images) != 1 || chat.last.Images[0].MIMEType != "image/png" || !bytes.Equal(chat.last.Images[0].Data, image) {
		t.Fatalf("image not forwarded: %+v", chat.last.Images)
	}

	fallback := PortfolioAnalysis{RiskScore: 5, Text: PortfolioFallback}
	for _, reply := range []string{
		"I cannot read this image",
		`{"risk_score": 11, "text": "too risky"}`,
		`{"text": "no score"}`,
		`{"risk_score": "high", "text": "bad type"}`,
	} {
		chat.reply = reply
		if got := h.orc.AnalyzePortfolio(context.Background(), image, ""); got != fallback {
			t.Fatalf("reply %q: expected fallback, got %+v", reply, got)
		}
	}
	if chat.last.Images[0].MIMEType != "image/jpeg" {
		t.Fatalf("expected jpeg default, got %q", chat.last.Images[0].MIMEType)
	}

	chat.err = errors.New("model down")
	if got := h.orc.AnalyzePortfolio(context.Background(), image, "image/png"); got != fallback {
		t.Fatalf("expected fallback on backend error, got %+v", got)
	}
	if got := newHarness(t, options{}).orc.AnalyzePortfolio(context.Background(), image, "image/png"); got != fallback {
		t.Fatalf("expected fallback without a model, got %+v", got)
	}
}
