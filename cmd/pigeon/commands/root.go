// Package commands implements the pigeon CLI: a small front end over the
// ironpigeon SDK for creating an endpoint, publishing its address-book
// entry, and exchanging payloads through a relay.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dengbo/ironpigeon"
)

var (
	relayURL string
	blobBase string
	keyFile  string

	provider = ironpigeon.NewCryptoProvider()
)

func Execute() error {
	root := &cobra.Command{
		Use:           "pigeon",
		Short:         "End-to-end encrypted asynchronous messaging",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			if relayURL == "" {
				relayURL = Config.Relay
			}
			if blobBase == "" {
				blobBase = Config.BlobBase
			}
			if keyFile == "" {
				keyFile = Config.KeyFile
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL")
	root.PersistentFlags().StringVar(&blobBase, "blob", "", "blob service base URL")
	root.PersistentFlags().StringVar(&keyFile, "key-file", "", "endpoint key file (default ~/.config/pigeon/endpoint.bin)")

	root.AddCommand(initCmd(), publishCmd(), sendCmd(), recvCmd())
	return root.Execute()
}

// loadEndpoint reads the private endpoint from the key file.
func loadEndpoint() (*ironpigeon.OwnEndpoint, error) {
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, fmt.Errorf("open key file (run 'pigeon init' first): %w", err)
	}
	defer f.Close()
	return ironpigeon.OpenOwnEndpoint(f)
}

// saveEndpoint writes the private endpoint to the key file with
// restrictive permissions.
func saveEndpoint(own *ironpigeon.OwnEndpoint) error {
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := own.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// newChannel builds a channel for the loaded endpoint.
func newChannel(own *ironpigeon.OwnEndpoint) (*ironpigeon.Channel, error) {
	opts := []ironpigeon.Option{
		ironpigeon.WithCryptoProvider(provider),
	}
	if blobBase != "" {
		opts = append(opts, ironpigeon.WithBlobStore(&ironpigeon.HTTPBlobStore{BaseURL: blobBase}))
	}
	return ironpigeon.New(own, opts...)
}
