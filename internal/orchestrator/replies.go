package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

const (
	WalletNotConnected           = "Please connect your wallet first"
	CrossChainWalletNotConnected = "Please connect your wallet first to perform cross-chain swaps."
	BalanceWalletNotConnected    = "Please make sure your wallet is connected to check your balance."
	InvalidSwapAmount            = "Could not understand the swap amount. Please try again with a valid amount."
	NoRoutesFound                = "No valid routes found for this swap. This might be due to insufficient liquidity or temporary issues."
	ProcessingError              = "Sorry, there was an error processing your request. Please try again."
	CrossChainUnavailable        = "Cross-chain swaps are only available from Flare to USDC on Arbitrum."
	NothingToConfirm             = "No pending transaction to confirm."
	NoSigner                     = "No signer is configured, so the transaction cannot be submitted. It is still staged."
	ResetComplete                = "Reset complete"
	UnknownCommand               = "Unknown command"
	InvalidWallet                = "Please provide a valid wallet address (0x followed by 40 hex characters)."

	confirmPrompt = "Type CONFIRM to proceed."
)

// Error prefixes for failures inside a handler.
const (
	prefixSwap       = "Error preparing swap: "
	prefixCrossChain = "Error preparing cross-chain swap: "
	prefixTransfer   = "Error preparing transfer: "
	prefixBalance    = "Error checking balance: "
	prefixSubmit     = "Error submitting transaction: "
)

func connectedText(wallet string, n registry.Network) string {
	return fmt.Sprintf("Wallet connected: %s\nNetwork: %s (chain id %d, native %s)", id.ShortAddress(wallet), n.Name, n.ChainID, n.NativeToken().Symbol)
}

func balanceText(wallet, balance, symbol, staked string) string {
	text := fmt.Sprintf("Your wallet (%s) has:\n\n%s %s", id.ShortAddress(wallet), balance, symbol)
	if staked != "" {
		text += fmt.Sprintf("\n%s sFLR staked", staked)
	}
	return text
}

func transferText(amount float64, symbol, to string) string {
	return fmt.Sprintf("Transaction Preview: Sending %s %s to %s\n%s", id.FormatAmount(amount), symbol, to, confirmPrompt)
}

func swapText(wallet string, result txbuilder.SwapResult) string {
	var b strings.Builder
	amount := id.FormatAmount(result.AmountIn)
	fmt.Fprintf(&b, "Ready to swap %s %s for %s.\n\n", amount, result.TokenIn, result.TokenOut)
	b.WriteString("Transaction details:\n")
	fmt.Fprintf(&b, "- From: %s\n", id.ShortAddress(wallet))
	fmt.Fprintf(&b, "- Amount: %s %s\n", amount, result.TokenIn)
	fmt.Fprintf(&b, "- Minimum received: %s %s", id.FormatUnits(result.MinAmountOut, result.OutDecimals), result.TokenOut)
	if result.NeedsApproval {
		fmt.Fprintf(&b, "\n\nToken approval required: allow the router to spend %s %s before confirming.", amount, result.TokenIn)
	}
	b.WriteString("\n\n" + confirmPrompt)
	return b.String()
}

func stakeText(wallet string, amount float64, symbol string) string {
	return fmt.Sprintf("Ready to stake %s %s for sFLR.\n\nTransaction details:\n- From: %s\n- Amount: %s %s\n\n%s",
		id.FormatAmount(amount), symbol, id.ShortAddress(wallet), id.FormatAmount(amount), symbol, confirmPrompt)
}

func crossChainText(wallet string, amount float64, expected string) string {
	return fmt.Sprintf("Ready to swap %s FLR to USDC on Arbitrum\n\nExpected output: %s USDC\nFrom: %s\n\n%s",
		id.FormatAmount(amount), expected, id.ShortAddress(wallet), confirmPrompt)
}

func submittedText(link string) string {
	return fmt.Sprintf("Transaction submitted.\n\n[See transaction on Explorer](%s)", link)
}

func submitFailedText(err error) string {
	return prefixSubmit + err.Error() + "\n\nThe transaction is still staged. Type CONFIRM to try again."
}
