package signer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

// Broadcaster sends a signed transaction (eth_sendRawTransaction).
// *ethclient.Client satisfies it.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Submitter signs staged transactions locally and broadcasts them.
type Submitter struct {
	signer Signer
	node   Broadcaster
}

func NewSubmitter(s Signer, node Broadcaster) *Submitter {
	return &Submitter{signer: s, node: node}
}

func (s *Submitter) Address() common.Address {
	return s.signer.Address()
}

// SendTransaction accepts a txbuilder.UnsignedTransaction. The key must own
// the transaction's from address.
func (s *Submitter) SendTransaction(ctx context.Context, tx any) (common.Hash, error) {
	var unsigned txbuilder.UnsignedTransaction
	switch v := tx.(type) {
	case txbuilder.UnsignedTransaction:
		unsigned = v
	case *txbuilder.UnsignedTransaction:
		if v == nil {
			return common.Hash{}, clierr.New(clierr.CodeSubmit, "nil transaction")
		}
		unsigned = *v
	default:
		return common.Hash{}, clierr.New(clierr.CodeSubmit, fmt.Sprintf("cannot sign %T", tx))
	}
	if !strings.EqualFold(unsigned.From, s.signer.Address().Hex()) {
		return common.Hash{}, clierr.New(clierr.CodeSubmit, fmt.Sprintf("signing key %s does not own sender %s", s.signer.Address().Hex(), unsigned.From))
	}
	native, err := ToTransaction(unsigned)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := s.signer.SignTx(unsigned.ChainID, native)
	if err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeSubmit, "sign transaction", err)
	}
	if err := s.node.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeSubmit, "broadcast transaction", err)
	}
	return signed.Hash(), nil
}

// ToTransaction converts a staged transaction into its go-ethereum form.
func ToTransaction(u txbuilder.UnsignedTransaction) (*types.Transaction, error) {
	if err := u.Validate(); err != nil {
		return nil, clierr.Wrap(clierr.CodeSubmit, "invalid staged transaction", err)
	}
	if u.ChainID == nil || u.ChainID.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeSubmit, "staged transaction has no chain id")
	}
	to := common.HexToAddress(u.To)
	value := u.Value
	if value == nil {
		value = new(big.Int)
	}
	switch u.Type {
	case txbuilder.TxTypeDynamicFee:
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   u.ChainID,
			Nonce:     u.Nonce,
			GasTipCap: u.MaxPriorityFeePerGas,
			GasFeeCap: u.MaxFeePerGas,
			Gas:       u.Gas,
			To:        &to,
			Value:     value,
			Data:      u.Data,
		}), nil
	default:
		return types.NewTx(&types.LegacyTx{
			Nonce:    u.Nonce,
			GasPrice: u.GasPrice,
			Gas:      u.Gas,
			To:       &to,
			Value:    value,
			Data:     u.Data,
		}), nil
	}
}
