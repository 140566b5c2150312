package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dengbo/ironpigeon"
)

// send <recipient> [message]: encrypt and deliver a payload. The recipient
// is either the URL of a published address-book entry (with optional
// #thumbprint fragment) or the raw base64url entry itself. With no message
// argument the text is read from stdin; on a terminal the input is not
// echoed.
func sendCmd() *cobra.Command {
	var (
		lifetime    time.Duration
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "send <recipient> [message]",
		Short: "Encrypt and send a payload to a recipient",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			own, err := loadEndpoint()
			if err != nil {
				return err
			}
			channel, err := newChannel(own)
			if err != nil {
				return err
			}

			recipient, err := resolveRecipient(cmd, args[0])
			if err != nil {
				return err
			}

			var content []byte
			if len(args) == 2 {
				content = []byte(args[1])
			} else if content, err = readMessage(); err != nil {
				return err
			}

			payload := &ironpigeon.Payload{Content: content, ContentType: contentType}
			expires := time.Now().UTC().Add(lifetime)
			if _, err := channel.Post(cmd.Context(), payload, []*ironpigeon.Endpoint{recipient}, expires); err != nil {
				return err
			}

			fmt.Println("sent")
			return nil
		},
	}

	cmd.Flags().DurationVar(&lifetime, "lifetime", 24*time.Hour, "how long the payload stays retrievable")
	cmd.Flags().StringVar(&contentType, "content-type", "text/plain", "payload content type")
	return cmd
}

// resolveRecipient accepts a published entry URL or a raw base64url entry.
func resolveRecipient(cmd *cobra.Command, arg string) (*ironpigeon.Endpoint, error) {
	if strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "http://") {
		return ironpigeon.FetchAddressBookEntry(cmd.Context(), nil, provider, arg)
	}
	entry, err := ironpigeon.DecodeAddressBookEntry(arg)
	if err != nil {
		return nil, err
	}
	return entry.Verify(provider, "")
}

// readMessage reads the payload text from stdin, without echo when stdin
// is a terminal.
func readMessage() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "message: ")
		content, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return content, err
	}
	return io.ReadAll(os.Stdin)
}
