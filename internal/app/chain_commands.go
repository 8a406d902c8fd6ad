package app

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/id"
	"github.com/ggonzalez94/defai/internal/model"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/staking"
)

func (s *runtimeState) newNetworksCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "networks",
		Short: "Supported networks",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List supported networks, tokens and contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			networks := registry.Networks()
			items := make([]model.NetworkInfo, 0, len(networks))
			for _, n := range networks {
				items = append(items, networkInfo(n))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	}
	root.AddCommand(list)
	return root
}

func networkInfo(n registry.Network) model.NetworkInfo {
	tokens := make([]string, 0, len(n.Tokens))
	for symbol := range n.Tokens {
		tokens = append(tokens, symbol)
	}
	sort.Strings(tokens)
	info := model.NetworkInfo{
		Name:          n.Name,
		Slug:          n.Slug,
		ChainID:       n.ChainID,
		NativeSymbol:  n.NativeSymbol,
		WrappedNative: n.WrappedNative,
		ExplorerURL:   n.ExplorerURL,
		Tokens:        tokens,
	}
	if router, _, ok := registry.BlazeSwapContracts(n.ChainID); ok {
		info.SwapRouter = router
	}
	if staked, ok := registry.StakedFlareContract(n.ChainID); ok {
		info.StakedToken = staked
	}
	return info
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var wallet string
	cmd := &cobra.Command{
		Use:   "quote <amount>",
		Short: "Quote a Flare FLR to Arbitrum USDC cross-chain swap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			if !id.IsAddress(wallet) {
				return clierr.New(clierr.CodeUsage, "--wallet must be a 0x address")
			}
			client, err := s.newBridge()
			if err != nil {
				return err
			}
			quote, err := client.GetQuote(cmd.Context(), wallet, amount)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), quote, nil)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Sender wallet address")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

func (s *runtimeState) newStakeCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stake",
		Short: "Liquid staking into sFLR",
	}

	var buildWallet string
	build := &cobra.Command{
		Use:   "build <amount>",
		Short: "Build an unsigned stake transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			reader, err := s.dialChain(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := staking.NewHelper(reader, s.network).BuildStake(cmd.Context(), buildWallet, amount)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), tx, nil)
		},
	}
	build.Flags().StringVar(&buildWallet, "wallet", "", "Sender wallet address")
	_ = build.MarkFlagRequired("wallet")

	var balanceWallet string
	balance := &cobra.Command{
		Use:   "balance",
		Short: "Read the sFLR balance of a wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := s.dialChain(cmd.Context())
			if err != nil {
				return err
			}
			amount, err := staking.NewHelper(reader, s.network).ReadStakedBalance(cmd.Context(), balanceWallet)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.StakedBalance{
				Wallet:  balanceWallet,
				Network: s.network.Slug,
				Amount:  amount,
				Symbol:  "sFLR",
			}, nil)
		},
	}
	balance.Flags().StringVar(&balanceWallet, "wallet", "", "Wallet address")
	_ = balance.MarkFlagRequired("wallet")

	parse := &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse a \"stake <amount> flr\" command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := staking.ParseCommand(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), parsed, nil)
		},
	}

	root.AddCommand(build)
	root.AddCommand(balance)
	root.AddCommand(parse)
	return root
}

func parseAmountArg(v string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsInf(amount, 0) || !(amount > 0) {
		return 0, clierr.New(clierr.CodeUsage, "amount must be a positive number")
	}
	return amount, nil
}
