package txbuilder

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type TxType uint8

const (
	TxTypeLegacy     TxType = 0
	TxTypeDynamicFee TxType = 2
)

// UnsignedTransaction is a fully populated transaction awaiting an external
// signature. Exactly one fee shape is set: GasPrice for legacy, the
// MaxFeePerGas/MaxPriorityFeePerGas pair for dynamic-fee.
type UnsignedTransaction struct {
	From                 string
	To                   string
	Value                *big.Int
	Data                 []byte
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	ChainID              *big.Int
	Type                 TxType
}

// wireTransaction is the JSON form: every numeric field is a 0x-prefixed hex
// quantity, matching what wallets accept for eth_sendTransaction.
type wireTransaction struct {
	From                 string          `json:"from"`
	To                   string          `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Data                 hexutil.Bytes   `json:"data"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	ChainID              *hexutil.Big    `json:"chainId"`
	Type                 *hexutil.Uint64 `json:"type"`
}

func (tx UnsignedTransaction) MarshalJSON() ([]byte, error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	data := tx.Data
	if data == nil {
		data = []byte{}
	}
	typ := hexutil.Uint64(tx.Type)
	w := wireTransaction{
		From:                 tx.From,
		To:                   tx.To,
		Value:                (*hexutil.Big)(value),
		Data:                 data,
		Gas:                  hexutil.Uint64(tx.Gas),
		GasPrice:             (*hexutil.Big)(tx.GasPrice),
		MaxFeePerGas:         (*hexutil.Big)(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(tx.MaxPriorityFeePerGas),
		Nonce:                hexutil.Uint64(tx.Nonce),
		ChainID:              (*hexutil.Big)(tx.ChainID),
		Type:                 &typ,
	}
	return json.Marshal(w)
}

func (tx *UnsignedTransaction) UnmarshalJSON(buf []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(buf, &w); err != nil {
		return err
	}
	*tx = UnsignedTransaction{
		From:                 w.From,
		To:                   w.To,
		Value:                (*big.Int)(w.Value),
		Data:                 []byte(w.Data),
		Gas:                  uint64(w.Gas),
		GasPrice:             (*big.Int)(w.GasPrice),
		MaxFeePerGas:         (*big.Int)(w.MaxFeePerGas),
		MaxPriorityFeePerGas: (*big.Int)(w.MaxPriorityFeePerGas),
		Nonce:                uint64(w.Nonce),
		ChainID:              (*big.Int)(w.ChainID),
	}
	if w.Type != nil {
		tx.Type = TxType(*w.Type)
	}
	return tx.Validate()
}

// Validate checks that exactly one fee shape is populated for the declared type.
func (tx UnsignedTransaction) Validate() error {
	switch tx.Type {
	case TxTypeLegacy:
		if tx.GasPrice == nil || tx.MaxFeePerGas != nil || tx.MaxPriorityFeePerGas != nil {
			return fmt.Errorf("legacy transaction requires gasPrice only")
		}
	case TxTypeDynamicFee:
		if tx.GasPrice != nil || tx.MaxFeePerGas == nil || tx.MaxPriorityFeePerGas == nil {
			return fmt.Errorf("dynamic-fee transaction requires maxFeePerGas and maxPriorityFeePerGas only")
		}
	default:
		return fmt.Errorf("unsupported transaction type %d", tx.Type)
	}
	return nil
}
