package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Network   string    `json:"network,omitempty"`
	Session   string    `json:"session,omitempty"`
}

// ChatReply is the data payload of `ask`.
type ChatReply struct {
	Session string `json:"session"`
	Text    string `json:"text"`
	Intent  string `json:"intent,omitempty"`
	Staged  any    `json:"staged,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
}

type NetworkInfo struct {
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	ChainID       int64    `json:"chain_id"`
	NativeSymbol  string   `json:"native_symbol"`
	WrappedNative string   `json:"wrapped_native,omitempty"`
	ExplorerURL   string   `json:"explorer_url"`
	Tokens        []string `json:"tokens"`
	SwapRouter    string   `json:"swap_router,omitempty"`
	StakedToken   string   `json:"staked_token,omitempty"`
}

type StakedBalance struct {
	Wallet  string `json:"wallet"`
	Network string `json:"network"`
	Amount  string `json:"amount"`
	Symbol  string `json:"symbol"`
}

// PendingSlot reports a session's staged transaction, if any.
type PendingSlot struct {
	Session string `json:"session"`
	Staged  any    `json:"staged,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}
