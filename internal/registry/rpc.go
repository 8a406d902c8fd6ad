package registry

import (
	"fmt"
	"strings"
)

func DefaultRPCURL(chainID int64) (string, bool) {
	n, ok := NetworkByChainID(chainID)
	if !ok || n.RPCURL == "" {
		return "", false
	}
	return n.RPCURL, true
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if v, ok := DefaultRPCURL(chainID); ok {
		return v, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; provide --rpc-url", chainID)
}
