package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// Reader is the read-only chain surface the builders need. Nothing here signs
// or broadcasts.
type Reader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	// BaseFee returns nil when the latest block carries no base fee.
	BaseFee(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client adapts an ethclient connection to Reader.
type Client struct {
	*ethclient.Client
}

func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	c, err := ethclient.DialContext(ctx, strings.TrimSpace(rpcURL))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	return &Client{Client: c}, nil
}

// BaseFee reads baseFeePerGas from the latest block without decoding the
// full header, so chains with non-standard header fields still work.
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	var block struct {
		BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := c.Client.Client().CallContext(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, err
	}
	if block.BaseFeePerGas == nil {
		return nil, nil
	}
	return new(big.Int).Set((*big.Int)(block.BaseFeePerGas)), nil
}

// SendTransaction hands an unsigned transaction object to a node or external
// signer that manages the account (eth_sendTransaction).
func (c *Client) SendTransaction(ctx context.Context, tx any) (common.Hash, error) {
	var hash common.Hash
	if err := c.Client.Client().CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
