// Package intent classifies chat messages into one of six fixed intents and
// extracts the structured parameters each intent needs.
package intent

import "strings"

type Intent int

const (
	CheckBalance Intent = iota + 1
	SendToken
	CrossChainSwap
	SwapToken
	RequestAttestation
	Conversational
)

// Precedence lists intents from strongest to weakest. When a backend reports
// several, the earliest one here wins.
var Precedence = []Intent{CheckBalance, SendToken, CrossChainSwap, SwapToken, RequestAttestation, Conversational}

var names = map[Intent]string{
	CheckBalance:       "CHECK_BALANCE",
	SendToken:          "SEND_TOKEN",
	CrossChainSwap:     "CROSS_CHAIN_SWAP",
	SwapToken:          "SWAP_TOKEN",
	RequestAttestation: "REQUEST_ATTESTATION",
	Conversational:     "CONVERSATIONAL",
}

func (i Intent) String() string {
	if name, ok := names[i]; ok {
		return name
	}
	return "UNKNOWN"
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Parse maps a category label to an Intent. Matching ignores case and
// surrounding whitespace or quotes.
func Parse(label string) (Intent, bool) {
	label = strings.ToUpper(strings.Trim(strings.TrimSpace(label), `"'`))
	for intent, name := range names {
		if name == label {
			return intent, true
		}
	}
	return 0, false
}

// Labels returns every category label in precedence order.
func Labels() []string {
	out := make([]string, 0, len(Precedence))
	for _, i := range Precedence {
		out = append(out, i.String())
	}
	return out
}
