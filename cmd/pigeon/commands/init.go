package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dengbo/ironpigeon"
)

// init: generate a key pair, create an inbox at the relay, save the
// private endpoint to the key file.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate an endpoint and create its inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if relayURL == "" {
				return fmt.Errorf("relay required (--relay or PIGEON_RELAY)")
			}
			if _, err := os.Stat(keyFile); err == nil {
				return fmt.Errorf("key file %s already exists", keyFile)
			}

			own, err := ironpigeon.NewOwnEndpoint(provider)
			if err != nil {
				return err
			}

			channel, err := newChannel(own)
			if err != nil {
				return err
			}
			if err := channel.CreateInbox(cmd.Context(), relayURL); err != nil {
				return err
			}

			if err := saveEndpoint(own); err != nil {
				return err
			}

			fmt.Printf("endpoint %s\n", own.Thumbprint(provider))
			fmt.Printf("inbox    %s\n", own.MessageReceivingEndpoint)
			fmt.Printf("saved    %s\n", keyFile)
			return nil
		},
	}
}
