package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/core/smartaccount"
)

var sendSponsoredCmd = &cobra.Command{
	Use:   "send-sponsored",
	Short: "Send 0.001 ETH from the smart account with sponsored gas",
	Long: `Send 0.001 ETH from the smart account to the key's own address. Gas is
paid by the Gas Manager policy in ALCHEMY_GAS_MANAGER_POLICY_ID, the smart
account still needs the 0.001 ETH it transfers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(config.SponsoredRequirement)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := smartaccount.NewClient(ctx, smartaccount.ClientConfig{
			Signer:             s.signer,
			Chain:              s.cfg.Chain,
			APIKey:             s.cfg.APIKey,
			GasManagerPolicyID: s.cfg.GasManagerPolicyID,
			RPCURL:             aaRPCURL,
			Logger:             s.logger,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		out, err := s.runner(cmd).RunSponsored(ctx, client, s.signer.Address())
		if err := s.finish(ctx, out, err); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Transaction: %s\n", s.cfg.Chain.TxURL(out.TxHash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendSponsoredCmd)
}
