package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// publish: emit the signed address-book entry for the local endpoint.
// The output is the base64url form to host at a public URL; append the
// printed thumbprint as the URL fragment when sharing the link.
func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Print the signed address-book entry for this endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			own, err := loadEndpoint()
			if err != nil {
				return err
			}
			channel, err := newChannel(own)
			if err != nil {
				return err
			}

			entry, err := channel.CreateAddressBookEntry()
			if err != nil {
				return err
			}
			encoded, err := entry.Encode()
			if err != nil {
				return err
			}

			fmt.Println(encoded)
			fmt.Printf("thumbprint #%s\n", own.Thumbprint(provider))
			return nil
		},
	}
}
