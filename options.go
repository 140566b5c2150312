package ironpigeon

import (
	"log/slog"
	"net/http"
)

// config holds configuration for the channel.
type config struct {
	httpClient   *http.Client
	blobStore    BlobStore
	provider     CryptoProvider
	logger       *slog.Logger
	frameCeiling int
}

// receiveConfig holds configuration for a single Receive call.
type receiveConfig struct {
	longPoll bool
	progress func(*Payload)
}

// Option configures the channel.
type Option func(*config)

// ReceiveOption configures a Receive call.
type ReceiveOption func(*receiveConfig)

// WithHTTPClient sets a custom HTTP client used for the relay and for
// payload blob downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithBlobStore sets the blob store payload ciphertexts are uploaded to.
// Posting payloads fails with a precondition error until one is configured.
func WithBlobStore(store BlobStore) Option {
	return func(c *config) {
		c.blobStore = store
	}
}

// WithCryptoProvider sets a custom cryptographic suite.
// Default: NewCryptoProvider().
func WithCryptoProvider(p CryptoProvider) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithFrameCeiling bounds the declared length accepted for any
// length-prefixed buffer read from untrusted input. Default: 16 MiB.
func WithFrameCeiling(bytes int) Option {
	return func(c *config) {
		c.frameCeiling = bytes
	}
}

// WithLongPoll makes Receive ask the relay to hold the listing request
// open until an item arrives.
func WithLongPoll() ReceiveOption {
	return func(c *receiveConfig) {
		c.longPoll = true
	}
}

// WithProgress registers a callback invoked after each payload is
// verified and decrypted, in completion order.
func WithProgress(fn func(*Payload)) ReceiveOption {
	return func(c *receiveConfig) {
		c.progress = fn
	}
}
