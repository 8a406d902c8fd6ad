package intent

import (
	"strings"

	"github.com/ggonzalez94/defai/internal/llm"
)

const routerPrompt = `Assign the user message below to exactly one category.
Categories, strongest first:
CHECK_BALANCE: the user wants to see how much they hold (balance, /balance, how much do I have).
SEND_TOKEN: the user wants to move tokens one way to another address (send, transfer, pay).
CROSS_CHAIN_SWAP: the user wants to exchange tokens between different chains, for example FLR on Flare into USDC on Arbitrum, or mentions a bridge.
SWAP_TOKEN: the user wants to exchange one token for another on the same chain (swap, trade, convert, wrap, stake into sFLR). No other chain is mentioned.
REQUEST_ATTESTATION: the user asks to verify the enclave or requests an attestation.
CONVERSATIONAL: greetings, questions and anything unclear or ambiguous.
Pick the single most specific category and ignore politeness or filler.

Message: {{input}}`

const sendPrompt = `Extract a token transfer from the message below.
to_address: the complete destination address exactly as written. It starts with 0x and has 40 hex characters after it. Never shorten or alter it.
amount: the first amount mentioned, as a decimal number. Words become digits (five -> 5).
Leave a field out when the message does not contain it. Never guess.

Message: {{input}}`

const swapPrompt = `Extract a same-chain token swap from the message below.
from_token: the symbol being sold, upper case (FLR, WFLR, USDC.E, SFLR).
to_token: the symbol being bought, upper case. It must differ from from_token.
amount: the amount of from_token as a decimal number. Words become digits (five -> 5).
Leave a field out when the message does not contain it. Never guess.

Message: {{input}}`

const crossChainPrompt = `Extract a cross-chain swap from the message below.
Only FLR on Flare to USDC on Arbitrum is supported.
from_token: the symbol being sent, upper case.
to_token: the symbol to receive on the destination chain, upper case.
amount: the amount of from_token as a decimal number. Words become digits (five -> 5).
Leave a field out when the message does not contain it. Never guess.

Message: {{input}}`

// Persona is the system instruction for free-form replies.
const Persona = `You are Artemis, an assistant for DeFi on the Flare network.
You know Flare's data protocols (FTSO, FDC), its liquid staking token sFLR and the BlazeSwap exchange.
You can help users check balances, send FLR, swap tokens on Flare, stake FLR into sFLR and bridge FLR to USDC on Arbitrum.
Answer the question asked, stay technically accurate and say so when you do not know something.
Keep replies short and friendly.`

// SendFollowUp asks the user to restate an incomplete transfer.
const SendFollowUp = `I need both a destination address and an amount to prepare a transfer.
Please send something like: send 1.5 FLR to 0x followed by the 40-character address.`

const SwapFollowUp = `I need both tokens and an amount to prepare a swap.
Please send something like: swap 10 FLR for USDC.E`

// AttestationInstructions explain how to request and check an attestation.
const AttestationInstructions = `To verify the enclave I am running in:

1. Reply with one random message between 10 and 74 characters, letters and numbers only, and nothing else.
2. I will answer with an attestation token that embeds your message.
3. Paste the full token into a JWT decoder such as jwt.io.
4. Check that the payload contains your exact message, the signature validates and every claim is valid.`

// ConversationalFallback is used when no model backend can answer.
const ConversationalFallback = `I can check your balance, send FLR, swap tokens on Flare, stake FLR into sFLR and bridge FLR to USDC on Arbitrum. What would you like to do?`

func render(template, input string) string {
	return strings.ReplaceAll(template, "{{input}}", input)
}

var routerSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"category": {Type: llm.TypeString, Enum: Labels()},
	},
	Required: []string{"category"},
}

var sendSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"to_address": {Type: llm.TypeString},
		"amount":     {Type: llm.TypeNumber},
	},
}

var swapSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"from_token": {Type: llm.TypeString},
		"to_token":   {Type: llm.TypeString},
		"amount":     {Type: llm.TypeNumber},
	},
}
