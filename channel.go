package ironpigeon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dengbo/ironpigeon/internal/relay"
	"github.com/dengbo/ironpigeon/internal/wire"
)

// Channel is a secure message channel for one endpoint: it builds the
// cryptographic envelope for outbound messages, runs the inverse
// verification/decryption pipeline for inbound messages, and talks to the
// inbox relay and blob store on the endpoint's behalf.
//
// The injected capabilities (crypto provider, blob store, HTTP client) are
// read-only after construction.
type Channel struct {
	own    *OwnEndpoint
	crypto CryptoProvider
	blob   BlobStore
	relay  *relay.Client

	httpClient   *http.Client
	logger       *slog.Logger
	frameCeiling int
}

// New creates a channel for the given endpoint.
func New(own *OwnEndpoint, opts ...Option) (*Channel, error) {
	if own == nil {
		return nil, &PreconditionError{Message: "endpoint is required"}
	}

	cfg := &config{
		frameCeiling: wire.DefaultFrameCeiling,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	provider := cfg.provider
	if provider == nil {
		provider = NewCryptoProvider()
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		own:          own,
		crypto:       provider,
		blob:         cfg.blobStore,
		relay:        relay.New(httpClient),
		httpClient:   httpClient,
		logger:       logger,
		frameCeiling: cfg.frameCeiling,
	}, nil
}

// Endpoint returns the channel's own endpoint.
func (ch *Channel) Endpoint() *OwnEndpoint {
	return ch.own
}

// CreateInbox provisions an inbox at the relay rooted at baseURL and
// populates the endpoint's inbox URL and owner code.
func (ch *Channel) CreateInbox(ctx context.Context, baseURL string) error {
	if ch.own.MessageReceivingEndpoint != "" {
		return ErrInboxAlreadyCreated
	}

	inbox, err := ch.relay.CreateInbox(ctx, baseURL)
	if err != nil {
		return err
	}

	ch.own.MessageReceivingEndpoint = inbox.MessageReceivingEndpoint
	ch.own.InboxOwnerCode = inbox.InboxOwnerCode
	return nil
}

// CreateAddressBookEntry serializes the public endpoint and signs the
// resulting bytes with the endpoint's signing key.
func (ch *Channel) CreateAddressBookEntry() (*AddressBookEntry, error) {
	serialized, err := serializeEndpoint(&ch.own.Endpoint)
	if err != nil {
		return nil, err
	}
	signature, err := ch.crypto.Sign(serialized, ch.own.SigningPrivateKey)
	if err != nil {
		return nil, err
	}
	return &AddressBookEntry{
		SerializedEndpoint: serialized,
		Signature:          signature,
	}, nil
}
