// Package chaintest serves a scripted JSON-RPC endpoint for tests.
package chaintest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Handler func(params []json.RawMessage) (any, error)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string][][]json.RawMessage
}

// NewServer starts a server answering chain id, nonce, fee and balance
// queries with fixed values. Handle overrides any method.
func NewServer(t testing.TB, chainID int64) *Server {
	t.Helper()
	s := &Server{
		handlers: map[string]Handler{},
		calls:    map[string][][]json.RawMessage{},
	}
	s.Handle("eth_chainId", Result(hexutil.EncodeUint64(uint64(chainID))))
	s.Handle("eth_getTransactionCount", Result("0x7"))
	// 30 gwei gas price, 2 gwei tip, 25 gwei base fee.
	s.Handle("eth_gasPrice", Result("0x6fc23ac00"))
	s.Handle("eth_maxPriorityFeePerGas", Result("0x77359400"))
	s.Handle("eth_getBlockByNumber", Result(map[string]any{"baseFeePerGas": "0x5d21dba00"}))
	s.Handle("eth_estimateGas", Result("0x5208"))
	s.Handle("eth_getBalance", Result("0x0"))
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls returns the params of every request received for method.
func (s *Server) Calls(method string) [][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]json.RawMessage, len(s.calls[method]))
	copy(out, s.calls[method])
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.calls[req.Method] = append(s.calls[req.Method], req.Params)
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		writeError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
		return
	}
	result, err := h(req.Params)
	if err != nil {
		writeError(w, req.ID, 3, err.Error())
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, rawIDOrDefault(req.ID), payload)
}

func Result(v any) Handler {
	return func([]json.RawMessage) (any, error) { return v, nil }
}

func Fail(message string) Handler {
	return func([]json.RawMessage) (any, error) { return nil, fmt.Errorf("%s", message) }
}

// CallArgs decodes the transaction object of eth_call / eth_estimateGas /
// eth_sendTransaction params.
func CallArgs(params []json.RawMessage) (map[string]string, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing call params")
	}
	var args map[string]string
	if err := json.Unmarshal(params[0], &args); err != nil {
		return nil, err
	}
	return args, nil
}

// CallData returns the calldata regardless of whether the client sent it as
// "input" or "data".
func CallData(params []json.RawMessage) ([]byte, error) {
	args, err := CallArgs(params)
	if err != nil {
		return nil, err
	}
	raw := args["input"]
	if raw == "" {
		raw = args["data"]
	}
	if raw == "" {
		return []byte{}, nil
	}
	return hexutil.Decode(raw)
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":%q}}`, rawIDOrDefault(id), code, message)
}

func rawIDOrDefault(id json.RawMessage) string {
	if len(id) == 0 {
		return "1"
	}
	return string(id)
}
