package registry

// BlazeSwap V2 deployments keyed by chain id.
var blazeSwapContractsByChainID = map[int64]struct {
	Router  string
	Factory string
}{
	14: {
		Router:  "0xe3A1b355ca63abCBC9589334B5e609583C7BAa06",
		Factory: "0x440602f459D7Dd500a74528003e6A20A46d6e2A6",
	},
}

func BlazeSwapContracts(chainID int64) (router string, factory string, ok bool) {
	contracts, ok := blazeSwapContractsByChainID[chainID]
	if !ok {
		return "", "", false
	}
	return contracts.Router, contracts.Factory, true
}

// Liquid staking (sFLR) contract keyed by chain id.
var stakedFlareByChainID = map[int64]string{
	14: "0x12e605bc104e93B45e1aD99F9e555f659051c2BB",
}

func StakedFlareContract(chainID int64) (string, bool) {
	addr, ok := stakedFlareByChainID[chainID]
	return addr, ok
}

// SubmitSelector is the 4-byte selector of the argument-less sFLR submit().
const SubmitSelector = "0x5bcb2fc6"
