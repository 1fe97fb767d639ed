package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/core/smartaccount"
	"github.com/AvaProtocol/ap-smartaccount/core/workflow"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the smart account of the configured key",
	Long:  `Print the counterfactual smart account address, whether it is deployed, its balance and its EntryPoint deposit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(config.BaseRequirement)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := smartaccount.NewClient(ctx, smartaccount.ClientConfig{
			Signer: s.signer,
			Chain:  s.cfg.Chain,
			APIKey: s.cfg.APIKey,
			RPCURL: aaRPCURL,
			Logger: s.logger,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		deployed, err := client.IsDeployed(ctx)
		if err != nil {
			return err
		}
		balance, err := client.Balance(ctx)
		if err != nil {
			return err
		}
		deposit, err := client.Deposit(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Chain:     %s (%s)\n", s.cfg.Chain.Name, client.ChainID())
		fmt.Fprintf(w, "Owner:     %s\n", s.signer.Address().Hex())
		fmt.Fprintf(w, "Account:   %s\n", client.Address().Hex())
		fmt.Fprintf(w, "Deployed:  %t\n", deployed)
		fmt.Fprintf(w, "Balance:   %s ETH\n", workflow.FormatEther(balance))
		fmt.Fprintf(w, "Deposit:   %s ETH\n", workflow.FormatEther(deposit))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
}
