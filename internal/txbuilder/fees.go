package txbuilder

import (
	"context"
	"math/big"

	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
)

type FeeFields struct {
	Type                 TxType
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (f FeeFields) apply(tx *UnsignedTransaction) {
	tx.Type = f.Type
	tx.GasPrice = f.GasPrice
	tx.MaxFeePerGas = f.MaxFeePerGas
	tx.MaxPriorityFeePerGas = f.MaxPriorityFeePerGas
}

// ResolveFees prefers dynamic fees (max fee = 2x base fee, tip = node
// suggestion) and falls back to a flat gas price when the chain reports no
// base fee or no tip suggestion.
func ResolveFees(ctx context.Context, reader chain.Reader) (FeeFields, error) {
	baseFee, err := reader.BaseFee(ctx)
	if err != nil {
		return FeeFields{}, clierr.Wrap(clierr.CodeBuild, "fetch latest base fee", err)
	}
	if baseFee != nil {
		tipCap, tipErr := reader.SuggestGasTipCap(ctx)
		if tipErr == nil && tipCap != nil {
			feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
			if feeCap.Cmp(tipCap) < 0 {
				feeCap.Add(feeCap, tipCap)
			}
			return FeeFields{Type: TxTypeDynamicFee, MaxFeePerGas: feeCap, MaxPriorityFeePerGas: tipCap}, nil
		}
	}
	gasPrice, err := reader.SuggestGasPrice(ctx)
	if err != nil {
		return FeeFields{}, clierr.Wrap(clierr.CodeBuild, "fetch gas price", err)
	}
	return FeeFields{Type: TxTypeLegacy, GasPrice: gasPrice}, nil
}

// applyGasMargin scales an estimate by the fixed 20% safety margin.
func applyGasMargin(estimate uint64) uint64 {
	return estimate * 12 / 10
}
