// Package orchestrator turns one chat message into one reply: classify,
// extract, build, stage and format a preview. Staged transactions are
// submitted only on an explicit CONFIRM.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ggonzalez94/defai/internal/bridge"
	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/intent"
	"github.com/ggonzalez94/defai/internal/llm"
	"github.com/ggonzalez94/defai/internal/pending"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/staking"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

// Session is the per-conversation context. It is passed to every call; the
// orchestrator keeps no wallet state of its own.
type Session struct {
	ID                   string `json:"id"`
	Wallet               string `json:"wallet,omitempty"`
	AttestationRequested bool   `json:"attestation_requested,omitempty"`
}

func NewSession(wallet string) *Session {
	return &Session{ID: uuid.NewString(), Wallet: strings.TrimSpace(wallet)}
}

func (s *Session) walletConnected() bool {
	return id.IsAddress(s.Wallet)
}

// Reply is the result of handling one message.
type Reply struct {
	Text   string               `json:"text"`
	Intent string               `json:"intent,omitempty"`
	Staged *pending.Transaction `json:"staged,omitempty"`
	TxHash string               `json:"tx_hash,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) intent.Intent
}

type Extractor interface {
	Extract(ctx context.Context, in intent.Intent, text string) (intent.Outcome, error)
}

type Bridge interface {
	GetQuote(ctx context.Context, sender string, amount float64) (bridge.Quote, error)
	Execute(quote bridge.Quote) (bridge.ExecutionResult, error)
}

// Submitter hands an unsigned transaction to whatever holds the keys.
// *chain.Client satisfies it through eth_sendTransaction.
type Submitter interface {
	SendTransaction(ctx context.Context, tx any) (common.Hash, error)
}

// Deps wires an Orchestrator. Bridge, Submitter and Chat are optional.
type Deps struct {
	Network    registry.Network
	Reader     chain.Reader
	Classifier Classifier
	Extractor  Extractor
	Queue      pending.Queue
	Bridge     Bridge
	Submitter  Submitter
	Chat       llm.Client
	Logger     *slog.Logger
	Builder    []txbuilder.Option
}

type Orchestrator struct {
	network    registry.Network
	reader     chain.Reader
	classifier Classifier
	extractor  Extractor
	queue      pending.Queue
	bridge     Bridge
	submitter  Submitter
	chat       llm.Client
	builder    *txbuilder.Builder
	staking    *staking.Helper
	log        *slog.Logger
	// bridgeChainID is the only network cross-chain swaps may leave from.
	bridgeChainID int64
}

func New(d Deps) (*Orchestrator, error) {
	if d.Reader == nil || d.Classifier == nil || d.Extractor == nil || d.Queue == nil {
		return nil, clierr.New(clierr.CodeUsage, "orchestrator requires a chain reader, classifier, extractor and queue")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	source, err := registry.LookupNetwork("flare")
	if err != nil {
		return nil, err
	}
	opts := append([]txbuilder.Option{txbuilder.WithLogger(log)}, d.Builder...)
	return &Orchestrator{
		network:       d.Network,
		reader:        d.Reader,
		classifier:    d.Classifier,
		extractor:     d.Extractor,
		queue:         d.Queue,
		bridge:        d.Bridge,
		submitter:     d.Submitter,
		chat:          d.Chat,
		builder:       txbuilder.New(d.Reader, d.Network, opts...),
		staking:       staking.NewHelper(d.Reader, d.Network),
		log:           log,
		bridgeChainID: source.ChainID,
	}, nil
}

// Handle always produces a reply. Component failures become user-facing
// text and are logged with the session id.
func (o *Orchestrator) Handle(ctx context.Context, s *Session, text string) (reply Reply) {
	if s == nil {
		o.log.Error("message without a session")
		return Reply{Text: ProcessingError}
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("panic while handling message", "session", s.ID, "panic", fmt.Sprint(r))
			reply = Reply{Text: ProcessingError}
		}
	}()

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "/"):
		return o.command(ctx, s, trimmed)
	case strings.EqualFold(trimmed, "CONFIRM"):
		return o.confirm(ctx, s)
	}

	in := o.classifier.Classify(ctx, trimmed)
	o.log.Debug("message classified", "session", s.ID, "intent", in.String())
	// Stake commands only short-cut swaps and chatter; higher intents win.
	if in == intent.SwapToken || in == intent.Conversational {
		if stake, err := staking.ParseCommand(trimmed); err == nil {
			return o.stake(ctx, s, stake.Amount, trimmed)
		}
	}
	switch in {
	case intent.CheckBalance:
		return o.balance(ctx, s)
	case intent.SendToken:
		return o.send(ctx, s, trimmed)
	case intent.SwapToken:
		return o.swap(ctx, s, trimmed)
	case intent.CrossChainSwap:
		return o.crossChain(ctx, s, trimmed)
	case intent.RequestAttestation:
		s.AttestationRequested = true
		return Reply{Text: intent.AttestationInstructions, Intent: in.String()}
	case intent.Conversational:
		return o.converse(ctx, trimmed)
	default:
		return o.failure(s, in, "", clierr.New(clierr.CodeUnknownIntent, fmt.Sprintf("unhandled intent %d", int(in))))
	}
}

// ConnectWallet attaches address to the session and reports the network
// and the wallet's current balance.
func (o *Orchestrator) ConnectWallet(ctx context.Context, s *Session, address string) Reply {
	address = strings.TrimSpace(address)
	if !id.IsAddress(address) {
		return Reply{Text: InvalidWallet}
	}
	s.Wallet = address
	text := connectedText(address, o.network)
	if b := o.balance(ctx, s); b.Text != "" {
		text += "\n\n" + b.Text
	}
	return Reply{Text: text, Intent: intent.CheckBalance.String()}
}

func (o *Orchestrator) command(ctx context.Context, s *Session, text string) Reply {
	name := strings.ToLower(strings.Fields(text)[0])
	if name != "/reset" {
		return Reply{Text: UnknownCommand}
	}
	if err := o.queue.Clear(ctx, s.ID); err != nil {
		o.log.Error("reset failed", "session", s.ID, "error", err)
		return Reply{Text: ProcessingError}
	}
	s.AttestationRequested = false
	return Reply{Text: ResetComplete}
}

func (o *Orchestrator) balance(ctx context.Context, s *Session) Reply {
	in := intent.CheckBalance
	if !s.walletConnected() {
		return Reply{Text: BalanceWalletNotConnected, Intent: in.String()}
	}
	wei, err := o.reader.BalanceAt(ctx, common.HexToAddress(s.Wallet), nil)
	if err != nil {
		return o.failure(s, in, prefixBalance, clierr.Wrap(clierr.CodeUnavailable, "read balance", err))
	}
	var staked string
	if _, ok := registry.StakedFlareContract(o.network.ChainID); ok {
		staked, err = o.staking.ReadStakedBalance(ctx, s.Wallet)
		if err != nil {
			o.log.Warn("staked balance unavailable", "session", s.ID, "error", err)
			staked = ""
		}
	}
	native := o.network.NativeToken()
	return Reply{
		Text:   balanceText(s.Wallet, id.FormatUnits(wei, native.Decimals), native.Symbol, staked),
		Intent: in.String(),
	}
}

func (o *Orchestrator) send(ctx context.Context, s *Session, text string) Reply {
	in := intent.SendToken
	if !s.walletConnected() {
		return Reply{Text: WalletNotConnected, Intent: in.String()}
	}
	outcome, err := o.extractor.Extract(ctx, in, text)
	if err != nil {
		if clierr.Is(err, clierr.CodeValidation) {
			return Reply{Text: intent.SendFollowUp, Intent: in.String()}
		}
		return o.failure(s, in, prefixTransfer, err)
	}
	var params intent.SendParams
	switch v := outcome.(type) {
	case intent.NeedsMoreInfo:
		return Reply{Text: intent.SendFollowUp, Intent: in.String()}
	case intent.ParametersReady:
		p, ok := v.Params.(intent.SendParams)
		if !ok {
			return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected parameters for transfer"))
		}
		params = p
	default:
		return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected extraction outcome"))
	}

	tx, err := o.builder.BuildTransfer(ctx, s.Wallet, params.ToAddress, params.Amount)
	if err != nil {
		return o.failure(s, in, prefixTransfer, err)
	}
	staged, err := o.queue.Stage(ctx, s.ID, pending.KindTransfer, tx, text)
	if err != nil {
		return o.failure(s, in, "", err)
	}
	return Reply{
		Text:   transferText(params.Amount, o.network.NativeSymbol, params.ToAddress),
		Intent: in.String(),
		Staged: &staged,
	}
}

func (o *Orchestrator) swap(ctx context.Context, s *Session, text string) Reply {
	in := intent.SwapToken
	if !s.walletConnected() {
		return Reply{Text: WalletNotConnected, Intent: in.String()}
	}
	outcome, err := o.extractor.Extract(ctx, in, text)
	if err != nil {
		if clierr.Is(err, clierr.CodeValidation) {
			return Reply{Text: err.Error() + "\n\n" + intent.SwapFollowUp, Intent: in.String()}
		}
		return o.failure(s, in, prefixSwap, err)
	}
	var params intent.SwapParams
	switch v := outcome.(type) {
	case intent.NeedsMoreInfo:
		return Reply{Text: intent.SwapFollowUp, Intent: in.String()}
	case intent.ParametersReady:
		p, ok := v.Params.(intent.SwapParams)
		if !ok {
			return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected parameters for swap"))
		}
		params = p
	default:
		return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected extraction outcome"))
	}

	if params.FromToken.Native && params.ToToken.Symbol == "SFLR" {
		return o.stake(ctx, s, params.Amount, text)
	}
	result, err := o.builder.BuildSwap(ctx, params.FromToken.Symbol, params.ToToken.Symbol, params.Amount, s.Wallet)
	if err != nil {
		return o.failure(s, in, prefixSwap, err)
	}
	kind := pending.KindSwap
	if result.Wrap {
		kind = pending.KindWrap
	}
	staged, err := o.queue.Stage(ctx, s.ID, kind, result.Transaction, text)
	if err != nil {
		return o.failure(s, in, "", err)
	}
	return Reply{Text: swapText(s.Wallet, result), Intent: in.String(), Staged: &staged}
}

func (o *Orchestrator) stake(ctx context.Context, s *Session, amount float64, text string) Reply {
	in := intent.SwapToken
	if !s.walletConnected() {
		return Reply{Text: WalletNotConnected, Intent: in.String()}
	}
	tx, err := o.staking.BuildStake(ctx, s.Wallet, amount)
	if err != nil {
		return o.failure(s, in, prefixSwap, err)
	}
	staged, err := o.queue.Stage(ctx, s.ID, pending.KindStake, tx, text)
	if err != nil {
		return o.failure(s, in, "", err)
	}
	return Reply{Text: stakeText(s.Wallet, amount, o.network.NativeSymbol), Intent: in.String(), Staged: &staged}
}

func (o *Orchestrator) crossChain(ctx context.Context, s *Session, text string) Reply {
	in := intent.CrossChainSwap
	if !s.walletConnected() {
		return Reply{Text: CrossChainWalletNotConnected, Intent: in.String()}
	}
	if o.bridge == nil || o.network.ChainID != o.bridgeChainID {
		return Reply{Text: CrossChainUnavailable, Intent: in.String()}
	}
	outcome, err := o.extractor.Extract(ctx, in, text)
	if err != nil {
		return o.failure(s, in, prefixCrossChain, err)
	}
	var params intent.CrossChainParams
	switch v := outcome.(type) {
	case intent.NeedsMoreInfo:
		return Reply{Text: InvalidSwapAmount, Intent: in.String()}
	case intent.ParametersReady:
		p, ok := v.Params.(intent.CrossChainParams)
		if !ok {
			return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected parameters for cross-chain swap"))
		}
		params = p
	default:
		return o.failure(s, in, "", clierr.New(clierr.CodeInternal, "unexpected extraction outcome"))
	}

	quote, err := o.bridge.GetQuote(ctx, s.Wallet, params.Amount)
	if err != nil {
		return o.failure(s, in, prefixCrossChain, err)
	}
	o.log.Info("cross-chain quote accepted", "session", s.ID, "quote", quote.ID, "expected_output", quote.ExpectedOutput)
	result, err := o.bridge.Execute(quote)
	if err != nil {
		return o.failure(s, in, prefixCrossChain, err)
	}
	tx, err := o.bridgeTransaction(ctx, s.Wallet, result.Transaction)
	if err != nil {
		return o.failure(s, in, prefixCrossChain, err)
	}
	staged, err := o.queue.Stage(ctx, s.ID, pending.KindCrossChain, tx, text)
	if err != nil {
		return o.failure(s, in, "", err)
	}
	return Reply{Text: crossChainText(s.Wallet, params.Amount, result.ExpectedOutput), Intent: in.String(), Staged: &staged}
}

// bridgeTransaction fills nonce and fees around the aggregator's call. The
// template gas limit is used as given; without one the call is estimated.
func (o *Orchestrator) bridgeTransaction(ctx context.Context, wallet string, req bridge.TransactionRequest) (txbuilder.UnsignedTransaction, error) {
	if !id.IsAddress(req.To) {
		return txbuilder.UnsignedTransaction{}, clierr.New(clierr.CodeSwap, "quote transaction has no valid target")
	}
	from := common.HexToAddress(wallet)
	to := common.HexToAddress(req.To)
	gas := req.GasLimit
	if gas == 0 {
		estimated, err := txbuilder.EstimateWithMargin(ctx, o.reader, ethereum.CallMsg{From: from, To: &to, Value: req.Value, Data: req.Data})
		if err != nil {
			return txbuilder.UnsignedTransaction{}, err
		}
		gas = estimated
	}
	return txbuilder.Assemble(ctx, o.reader, from, to, req.Value, req.Data, gas)
}

func (o *Orchestrator) converse(ctx context.Context, text string) Reply {
	in := intent.Conversational
	if o.chat == nil {
		return Reply{Text: intent.ConversationalFallback, Intent: in.String()}
	}
	answer, err := o.chat.Generate(ctx, llm.Request{System: intent.Persona, Prompt: text})
	if err != nil || strings.TrimSpace(answer) == "" {
		o.log.Warn("conversational reply failed", "error", err)
		return Reply{Text: intent.ConversationalFallback, Intent: in.String()}
	}
	return Reply{Text: strings.TrimSpace(answer), Intent: in.String()}
}

// confirm submits the staged transaction. The slot is cleared only after a
// successful submission and only if nothing newer was staged meanwhile.
func (o *Orchestrator) confirm(ctx context.Context, s *Session) Reply {
	staged, ok, err := o.queue.Take(ctx, s.ID)
	if err != nil {
		o.log.Error("read staged transaction", "session", s.ID, "error", err)
		return Reply{Text: ProcessingError}
	}
	if !ok {
		return Reply{Text: NothingToConfirm}
	}
	if s.walletConnected() && !strings.EqualFold(staged.Unsigned.From, common.HexToAddress(s.Wallet).Hex()) {
		return Reply{Text: "The staged transaction was built for a different wallet. Please build it again.", Staged: &staged}
	}
	if o.submitter == nil {
		return Reply{Text: NoSigner, Staged: &staged}
	}
	hash, err := o.submitter.SendTransaction(ctx, staged.Unsigned)
	if err != nil {
		o.log.Error("submission failed", "session", s.ID, "tx", staged.ID, "error", err)
		return Reply{Text: submitFailedText(err), Staged: &staged}
	}
	if _, err := o.queue.ClearIfCurrent(ctx, s.ID, staged.ID); err != nil {
		o.log.Warn("clear staged transaction", "session", s.ID, "tx", staged.ID, "error", err)
	}
	o.log.Info("transaction submitted", "session", s.ID, "kind", string(staged.Kind), "hash", hash.Hex())
	return Reply{Text: submittedText(o.network.TxURL(hash.Hex())), TxHash: hash.Hex()}
}

// failure maps a component error to its reply. Coded pipeline errors keep
// their message behind the handler prefix; anything else is generic.
func (o *Orchestrator) failure(s *Session, in intent.Intent, prefix string, err error) Reply {
	o.log.Error("request failed", "session", s.ID, "intent", in.String(), "error", err)
	text := ProcessingError
	if cErr, ok := clierr.As(err); ok {
		switch cErr.Code {
		case clierr.CodeNoRoutes:
			text = NoRoutesFound
		case clierr.CodeInternal, clierr.CodeUnknownIntent:
		default:
			if prefix != "" {
				text = prefix + cErr.Error()
			}
		}
	}
	return Reply{Text: text, Intent: in.String()}
}
