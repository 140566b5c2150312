package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dengbo/ironpigeon"
)

// recv: list, verify, and decrypt pending payloads. With --ack each
// delivered payload's inbox pointer is deleted after printing.
func recvCmd() *cobra.Command {
	var (
		longPoll bool
		ack      bool
	)

	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Receive pending payloads",
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

			var opts []ironpigeon.ReceiveOption
			if longPoll {
				opts = append(opts, ironpigeon.WithLongPoll())
			}

			payloads, err := channel.Receive(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			for _, p := range payloads {
				fmt.Printf("--- %s (%d bytes)\n", p.ContentType, len(p.Content))
				fmt.Printf("%s\n", p.Content)
				if ack {
					if err := channel.DeleteInboxItem(cmd.Context(), p); err != nil {
						return err
					}
				}
			}
			if len(payloads) == 0 {
				fmt.Println("no payloads")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&longPoll, "long-poll", false, "hold the listing request open until an item arrives")
	cmd.Flags().BoolVar(&ack, "ack", false, "delete inbox items after printing")
	return cmd
}
