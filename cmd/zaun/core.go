package main

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const toBlockF = "to-block"

func newCoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "core",
		Short: "Inspect the Starknet core contract.",
	}
	cmd.AddCommand(
		newCoreStateCmd(a),
		newCoreUpdatesCmd(a),
		newCoreOperatorCmd(a),
	)
	return cmd
}

func newCoreStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the settled L2 state and the program configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			state, err := core.State(cmd.Context())
			if err != nil {
				return err
			}
			finalized, err := core.IsFinalized(cmd.Context())
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), [][]string{
				{"Core contract", core.Address().Hex()},
				{"Identify", state.Identify},
				{"Flavour", core.Flavour().String()},
				{"Program hash", hexutil.EncodeBig(state.ProgramHash)},
				{"Config hash", hexutil.EncodeBig(state.ConfigHash)},
				{"State root", hexutil.EncodeBig(state.StateRoot)},
				{"Block number", state.BlockNumber.String()},
				{"Block hash", hexutil.EncodeBig(state.BlockHash)},
				{"Finalized", strconv.FormatBool(finalized)},
			})
			return nil
		},
	}
}

func newCoreUpdatesCmd(a *app) *cobra.Command {
	var fromBlock, toBlock uint64
	cmd := &cobra.Command{
		Use:   "updates",
		Short: "List accepted state updates.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			var to *uint64
			if cmd.Flags().Changed(toBlockF) {
				to = &toBlock
			}
			updates, err := core.StateUpdates(cmd.Context(), fromBlock, to)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"L1 Block", "L2 Block", "Global Root", "Block Hash", "Transaction"})
			table.SetAutoWrapText(false)
			for _, update := range updates {
				table.Append([]string{
					strconv.FormatUint(update.Raw.BlockNumber, 10),
					update.BlockNumber.String(),
					hexutil.EncodeBig(update.GlobalRoot),
					hexutil.EncodeBig(update.BlockHash),
					update.Raw.TxHash.Hex(),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fromBlock, fromBlockF, 0, "First L1 block to search.")
	cmd.Flags().Uint64Var(&toBlock, toBlockF, 0, "Last L1 block to search. Defaults to the latest block.")
	return cmd
}

func newCoreOperatorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "is-operator <address>",
		Short: "Report whether an account may submit state updates.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress(accountF, args[0])
			if err != nil {
				return err
			}
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := core.Operators().IsOperator(cmd.Context(), account)
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), [][]string{
				{"Account", account.Hex()},
				{"Operator", strconv.FormatBool(ok)},
			})
			return nil
		},
	}
}
