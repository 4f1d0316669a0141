package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ethmom/rebalancer/internal/app"
	"github.com/ethmom/rebalancer/internal/bootstrap"
	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/state"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/wallet"
)

func reportTx(cmd *cobra.Command, action string, result *types.TransactionResult) {
	if result == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to do\n", action)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: tx %s in block %d, gas used %d (%.6f ETH)\n",
		action, result.TxHash, result.BlockNumber, result.GasUsed, result.GasFeeETH)
}

func newCreateCmd(s *session) *cobra.Command {
	var wethUnit, usdcUnit, name, symbol, manager string
	var save bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the SetToken with WETH and USDC components and the trade and issuance modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			weth, usdc := config.KnownAssets["WETH"], config.KnownAssets["USDC"]
			wethRaw, err := parseTokenAmount(wethUnit, weth.Decimals, "weth-unit")
			if err != nil {
				return err
			}
			usdcRaw, err := parseTokenAmount(usdcUnit, usdc.Decimals, "usdc-unit")
			if err != nil {
				return err
			}
			managerAddr, err := parseOptionalAddress(manager, "manager")
			if err != nil {
				return err
			}

			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			setToken, result, err := op.CreateSetToken(cmd.Context(), bootstrap.CreateRequest{
				Components: []common.Address{weth.Address, usdc.Address},
				Units:      []*big.Int{wethRaw, usdcRaw},
				Modules:    []common.Address{s.cfg.TradeModule, s.cfg.DebtIssuanceModule},
				Manager:    managerAddr,
				Name:       name,
				Symbol:     symbol,
			})
			if err != nil {
				return err
			}
			reportTx(cmd, "create", result)
			fmt.Fprintf(cmd.OutOrStdout(), "SetToken deployed at %s\n", setToken.Hex())

			if save {
				return state.SaveDeployedAddresses(s.cfg.AddressesFile, setToken)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&wethUnit, "weth-unit", "0.01", "WETH per SetToken share")
	cmd.Flags().StringVar(&usdcUnit, "usdc-unit", "10", "USDC per SetToken share")
	cmd.Flags().StringVar(&name, "name", bootstrap.DefaultName, "SetToken name")
	cmd.Flags().StringVar(&symbol, "symbol", bootstrap.DefaultSymbol, "SetToken symbol")
	cmd.Flags().StringVar(&manager, "manager", "", "manager address (defaults to the signer)")
	cmd.Flags().BoolVar(&save, "save", true, "write the address to the deployed addresses file")
	return cmd
}

func newInitTradeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "init-trade",
		Short: "Initialize the TradeModule for the SetToken",
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			setToken, err := s.chain.SetToken(s.cfg)
			if err != nil {
				return err
			}
			result, err := op.InitializeTradeModule(cmd.Context(), setToken)
			if err != nil {
				return err
			}
			reportTx(cmd, "init-trade", result)
			return nil
		},
	}
}

func newInitIssuanceCmd(s *session) *cobra.Command {
	var maxFee, issueFee, redeemFee, recipient string

	cmd := &cobra.Command{
		Use:   "init-issuance",
		Short: "Initialize the DebtIssuanceModule for the SetToken",
		RunE: func(cmd *cobra.Command, args []string) error {
			fees := wallet.IssuanceFees{}
			var err error
			if fees.MaxManagerFee, err = parseTokenAmount(maxFee, contracts.WETHDecimals, "max-manager-fee"); err != nil {
				return err
			}
			if fees.IssueFee, err = parseTokenAmount(issueFee, contracts.WETHDecimals, "issue-fee"); err != nil {
				return err
			}
			if fees.RedeemFee, err = parseTokenAmount(redeemFee, contracts.WETHDecimals, "redeem-fee"); err != nil {
				return err
			}
			if fees.FeeRecipient, err = parseOptionalAddress(recipient, "fee-recipient"); err != nil {
				return err
			}

			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			setToken, err := s.chain.SetToken(s.cfg)
			if err != nil {
				return err
			}
			result, err := op.InitializeIssuanceModule(cmd.Context(), setToken, fees)
			if err != nil {
				return err
			}
			reportTx(cmd, "init-issuance", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&maxFee, "max-manager-fee", "0", "max manager fee as a fraction (0.01 is 1%)")
	cmd.Flags().StringVar(&issueFee, "issue-fee", "0", "issue fee as a fraction")
	cmd.Flags().StringVar(&redeemFee, "redeem-fee", "0", "redeem fee as a fraction")
	cmd.Flags().StringVar(&recipient, "fee-recipient", "", "fee recipient (defaults to the signer)")
	return cmd
}

func newWrapETHCmd(s *session) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "wrap-eth",
		Short: "Wrap native ETH into WETH",
		RunE: func(cmd *cobra.Command, args []string) error {
			wei, err := parsePositiveAmount(amount, contracts.WETHDecimals, "amount")
			if err != nil {
				return err
			}
			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			result, err := op.WrapETH(cmd.Context(), wei)
			if err != nil {
				return err
			}
			reportTx(cmd, "wrap-eth", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "ETH to wrap")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newSwapETHCmd(s *session) *cobra.Command {
	var amount, token string

	cmd := &cobra.Command{
		Use:   "swap-eth",
		Short: "Buy a token with ETH on the UniswapV2 router",
		RunE: func(cmd *cobra.Command, args []string) error {
			wei, err := parsePositiveAmount(amount, contracts.WETHDecimals, "amount")
			if err != nil {
				return err
			}
			asset, err := config.LookupAsset(token)
			if err != nil {
				return err
			}
			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			result, err := op.SwapETHForToken(cmd.Context(), wei, asset.Address)
			if err != nil {
				return err
			}
			reportTx(cmd, "swap-eth", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "ETH to swap")
	cmd.Flags().StringVar(&token, "token", "USDC", "token to buy")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newApproveCmd(s *session) *cobra.Command {
	var amount, token string
	var unlimited bool

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the DebtIssuanceModule to pull a component during issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := config.LookupAsset(token)
			if err != nil {
				return err
			}
			raw := math.MaxBig256
			if !unlimited {
				if raw, err = parseTokenAmount(amount, asset.Decimals, "amount"); err != nil {
					return err
				}
			}
			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			result, err := op.ApproveForIssuance(cmd.Context(), asset.Address, raw)
			if err != nil {
				return err
			}
			reportTx(cmd, "approve "+asset.Symbol, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "component to approve (symbol or address)")
	cmd.Flags().StringVar(&amount, "amount", "0", "allowance in token units")
	cmd.Flags().BoolVar(&unlimited, "unlimited", false, "approve the maximum uint256 allowance")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newIssueCmd(s *session) *cobra.Command {
	return newIssuanceCmd(s, "issue", "Issue SetToken by depositing components", (*bootstrap.Operator).Issue)
}

func newRedeemCmd(s *session) *cobra.Command {
	return newIssuanceCmd(s, "redeem", "Redeem SetToken for its components", (*bootstrap.Operator).Redeem)
}

type issuanceFunc func(op *bootstrap.Operator, ctx context.Context, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error)

func newIssuanceCmd(s *session, use, short string, call issuanceFunc) *cobra.Command {
	var quantity, to string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parsePositiveAmount(quantity, contracts.WETHDecimals, "quantity")
			if err != nil {
				return err
			}
			recipient, err := parseOptionalAddress(to, "to")
			if err != nil {
				return err
			}
			op, err := s.chain.Operator(s.cfg)
			if err != nil {
				return err
			}
			setToken, err := app.ResolveSetToken(s.cfg)
			if err != nil {
				return err
			}
			result, err := call(op, cmd.Context(), setToken, qty, recipient)
			if err != nil {
				return err
			}
			reportTx(cmd, use, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&quantity, "quantity", "", "SetToken quantity")
	cmd.Flags().StringVar(&to, "to", "", "recipient (defaults to the signer)")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func newInspectCmd(s *session) *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print manager, modules, components, positions, units and supply as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			holderAddr, err := parseOptionalAddress(holder, "holder")
			if err != nil {
				return err
			}
			if holderAddr == (common.Address{}) {
				holderAddr = s.chain.Signer.Address()
			}
			setToken, err := s.chain.SetToken(s.cfg)
			if err != nil {
				return err
			}
			inspection, err := bootstrap.Inspect(cmd.Context(), setToken, holderAddr)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(inspection, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			balance, err := s.chain.Signer.ETHBalance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signer %s holds %s wei\n", s.chain.Signer.Address().Hex(), balance.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "account whose SetToken balance to report (defaults to the signer)")
	return cmd
}

func newRebalanceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Run one rebalancing cycle, the same as the bot with RUN_MODE=once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *s.cfg
			cfg.RunMode = config.RunModeOnce
			if err := cfg.ValidateBot(); err != nil {
				return err
			}

			recorder, paramsID, err := app.OpenHistory(&cfg)
			if err != nil {
				return err
			}
			defer recorder.Close()

			setToken, err := s.chain.SetToken(&cfg)
			if err != nil {
				return err
			}
			rb, err := app.NewRebalancer(&cfg, s.chain, setToken, recorder, paramsID)
			if err != nil {
				return err
			}

			result := rb.RunCycle(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %s finished with status %s\n", result.CycleID, result.Status)
			if code := result.Status.ExitCode(); code != 0 {
				log.Warn().Str("status", string(result.Status)).Msg("Cycle did not complete")
				return exitCodeError{code: code}
			}
			return nil
		},
	}
}
