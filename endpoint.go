package ironpigeon

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dengbo/ironpigeon/internal/wire"
)

// ownEndpointVersion is the version byte leading a persisted private
// endpoint stream. Streams with any other version are rejected as malformed.
const ownEndpointVersion = 1

// Endpoint is the public half of an addressable identity: two public keys
// and the inbox URL that receives notifications for it. Immutable once
// populated; identity is the thumbprint of SigningPublicKey.
type Endpoint struct {
	// SigningPublicKey verifies signatures produced by this endpoint.
	SigningPublicKey []byte
	// EncryptionPublicKey encrypts material readable only by this endpoint.
	EncryptionPublicKey []byte
	// MessageReceivingEndpoint is the inbox URL; empty until an inbox exists.
	MessageReceivingEndpoint string
}

// Thumbprint returns this endpoint's identity: the URL-safe base64 of the
// hash of its signing public key.
func (e *Endpoint) Thumbprint(p CryptoProvider) string {
	return Thumbprint(p, e.SigningPublicKey)
}

// OwnEndpoint is an Endpoint plus its private key material and the inbox
// owner secret. Private material never leaves the process except through
// Save.
type OwnEndpoint struct {
	Endpoint

	// SigningPrivateKey signs outbound notifications and address-book entries.
	SigningPrivateKey []byte
	// EncryptionPrivateKey decrypts inbound notification keys.
	EncryptionPrivateKey []byte
	// InboxOwnerCode is the bearer secret issued by the relay at inbox
	// creation; it proves list/delete authority.
	InboxOwnerCode string
}

// NewOwnEndpoint generates fresh signing and encryption key pairs with the
// given provider. The endpoint has no inbox until Channel.CreateInbox runs.
func NewOwnEndpoint(p CryptoProvider) (*OwnEndpoint, error) {
	signingPub, signingPriv, err := p.GenerateSigningKey()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	encryptionPub, encryptionPriv, err := p.GenerateEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}

	return &OwnEndpoint{
		Endpoint: Endpoint{
			SigningPublicKey:    signingPub,
			EncryptionPublicKey: encryptionPub,
		},
		SigningPrivateKey:    signingPriv,
		EncryptionPrivateKey: encryptionPriv,
	}, nil
}

// Save writes the private endpoint to w as a versioned stream. The stream
// contains private key material; store it with restrictive permissions.
func (o *OwnEndpoint) Save(w io.Writer) error {
	if _, err := w.Write([]byte{ownEndpointVersion}); err != nil {
		return err
	}
	for _, field := range [][]byte{
		o.SigningPublicKey,
		o.SigningPrivateKey,
		o.EncryptionPublicKey,
		o.EncryptionPrivateKey,
		[]byte(o.MessageReceivingEndpoint),
		[]byte(o.InboxOwnerCode),
	} {
		if err := wire.WriteSizeAndBuffer(w, field); err != nil {
			return err
		}
	}
	return nil
}

// OpenOwnEndpoint reads a private endpoint previously written by Save.
// Any deserialization failure is reported as malformed.
func OpenOwnEndpoint(r io.Reader) (*OwnEndpoint, error) {
	var version [1]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, &MalformedError{What: "endpoint stream", Err: err}
	}
	if version[0] != ownEndpointVersion {
		return nil, &MalformedError{
			What: "endpoint stream",
			Err:  fmt.Errorf("unsupported version %d", version[0]),
		}
	}

	fields := make([][]byte, 6)
	for i := range fields {
		b, err := wire.ReadSizeAndBuffer(r, 0)
		if err != nil {
			return nil, &MalformedError{What: "endpoint stream", Err: err}
		}
		fields[i] = b
	}

	own := &OwnEndpoint{
		Endpoint: Endpoint{
			SigningPublicKey:         fields[0],
			EncryptionPublicKey:      fields[2],
			MessageReceivingEndpoint: string(fields[4]),
		},
		SigningPrivateKey:    fields[1],
		EncryptionPrivateKey: fields[3],
		InboxOwnerCode:       string(fields[5]),
	}
	if len(own.SigningPublicKey) == 0 || len(own.SigningPrivateKey) == 0 ||
		len(own.EncryptionPublicKey) == 0 || len(own.EncryptionPrivateKey) == 0 {
		return nil, &MalformedError{
			What: "endpoint stream",
			Err:  fmt.Errorf("missing key material"),
		}
	}
	return own, nil
}

// endpointRecord converts e to its wire form.
func endpointRecord(e *Endpoint) *wire.Endpoint {
	return &wire.Endpoint{
		SigningPublicKey:         e.SigningPublicKey,
		EncryptionPublicKey:      e.EncryptionPublicKey,
		MessageReceivingEndpoint: e.MessageReceivingEndpoint,
	}
}

// endpointFromRecord converts a wire record back to an Endpoint.
func endpointFromRecord(rec *wire.Endpoint) *Endpoint {
	return &Endpoint{
		SigningPublicKey:         rec.SigningPublicKey,
		EncryptionPublicKey:      rec.EncryptionPublicKey,
		MessageReceivingEndpoint: rec.MessageReceivingEndpoint,
	}
}

// serializeEndpoint returns the canonical record bytes for e.
func serializeEndpoint(e *Endpoint) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteEndpoint(&buf, endpointRecord(e)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
