package ironpigeon

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dengbo/ironpigeon/internal/wire"
)

// AddressBookEntry is a signed, published record of a public endpoint.
// Consumers verify the signature against the endpoint's own signing key,
// so the hosting location needs no trust.
type AddressBookEntry struct {
	// SerializedEndpoint is the canonical record bytes of the endpoint.
	SerializedEndpoint []byte
	// Signature is the endpoint's signature over SerializedEndpoint.
	Signature []byte
}

// Encode returns the URL-safe base64 form of the entry, the representation
// published to a public URL.
func (e *AddressBookEntry) Encode() (string, error) {
	var buf bytes.Buffer
	err := wire.WriteAddressBookEntry(&buf, &wire.AddressBookEntry{
		SerializedEndpoint: e.SerializedEndpoint,
		Signature:          e.Signature,
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// PublishURL appends the endpoint's thumbprint as the fragment of a
// published entry URL, letting consumers verify they resolved the intended
// identity.
func (e *AddressBookEntry) PublishURL(p CryptoProvider, base string) (string, error) {
	endpoint, err := e.Verify(p, "")
	if err != nil {
		return "", err
	}
	return base + "#" + endpoint.Thumbprint(p), nil
}

// DecodeAddressBookEntry parses the URL-safe base64 form of an entry.
// The signature is not checked here; call Verify.
func DecodeAddressBookEntry(encoded string) (*AddressBookEntry, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &MalformedError{What: "address book entry", Err: err}
	}
	rec, err := wire.ReadAddressBookEntry(bytes.NewReader(raw), 0)
	if err != nil {
		return nil, &MalformedError{What: "address book entry", Err: err}
	}
	return &AddressBookEntry{
		SerializedEndpoint: rec.SerializedEndpoint,
		Signature:          rec.Signature,
	}, nil
}

// Verify checks the entry's signature and returns the endpoint it
// describes. When expectedThumbprint is non-empty it must match the
// endpoint's thumbprint, defeating substitution of a different (validly
// signed) entry at the published URL.
func (e *AddressBookEntry) Verify(p CryptoProvider, expectedThumbprint string) (*Endpoint, error) {
	rec, err := wire.ReadEndpoint(bytes.NewReader(e.SerializedEndpoint), 0)
	if err != nil {
		return nil, &MalformedError{What: "address book entry endpoint", Err: err}
	}

	if err := p.Verify(rec.SigningPublicKey, e.SerializedEndpoint, e.Signature); err != nil {
		return nil, &InvalidMessageError{Reason: ReasonBadSignature, Err: err}
	}

	endpoint := endpointFromRecord(rec)
	if expectedThumbprint != "" && endpoint.Thumbprint(p) != expectedThumbprint {
		return nil, &InvalidMessageError{Reason: ReasonMisdirected}
	}
	return endpoint, nil
}

// FetchAddressBookEntry downloads a published entry, verifies its
// signature, and checks its identity against the URL fragment when one is
// present.
func FetchAddressBookEntry(ctx context.Context, client *http.Client, p CryptoProvider, entryURL string) (*Endpoint, error) {
	u, err := url.Parse(entryURL)
	if err != nil {
		return nil, &MalformedError{What: "address book entry URL", Err: err}
	}
	expectedThumbprint := u.Fragment
	u.Fragment = ""

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: entryURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{StatusCode: resp.StatusCode, URL: entryURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{URL: entryURL, Err: err}
	}

	entry, err := DecodeAddressBookEntry(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, err
	}
	endpoint, err := entry.Verify(p, expectedThumbprint)
	if err != nil {
		return nil, fmt.Errorf("verify entry from %s: %w", entryURL, err)
	}
	return endpoint, nil
}
