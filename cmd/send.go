package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/core/smartaccount"
	"github.com/AvaProtocol/ap-smartaccount/core/wallet"
	"github.com/AvaProtocol/ap-smartaccount/core/workflow"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Fund the smart account or send 0.001 ETH from it",
	Long: `Check the smart account balance. Below 0.05 ETH, send 0.1 ETH to it from
the key's own account and stop: run the command again once the transfer is
mined. Otherwise send 0.001 ETH from the smart account back to the key's
account and wait for the receipts. The account pays for its own gas.`,
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

		w, err := wallet.New(ctx, s.cfg.APIURL, s.signer, s.logger)
		if err != nil {
			return err
		}
		defer w.Close()

		out, err := s.runner(cmd).RunFunded(ctx, client, w)
		if err := s.finish(ctx, out, err); err != nil {
			return err
		}

		switch out.State {
		case workflow.StateFundingSent:
			fmt.Fprintf(cmd.OutOrStdout(), "Funding %s with %s ETH: %s\nRun send again once it is mined.\n",
				client.Address().Hex(), workflow.FormatEther(workflow.TopUpAmount), s.cfg.Chain.TxURL(out.FundingTxHash))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction: %s\n", s.cfg.Chain.TxURL(out.TxHash))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
