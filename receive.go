package ironpigeon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dengbo/ironpigeon/internal/crypto"
	"github.com/dengbo/ironpigeon/internal/relay"
	"github.com/dengbo/ironpigeon/internal/wire"
)

// notification is the verified, decrypted content of one inbox item.
type notification struct {
	author    *Endpoint
	reference *PayloadReference
	createdAt time.Time
}

// Receive lists the inbox and returns every pending payload, verified and
// decrypted, in the order the relay returned the pointers.
//
// Inbox items are not deleted on success; acknowledgement is an explicit
// DeleteInboxItem call. An item whose notification has already expired at
// the relay, or whose payload blob has already expired at the blob store,
// is skipped and its pointer deleted. Any item that
// fails a cryptographic or framing check aborts the batch: silently
// dropping corrupt items would hide attacks.
func (ch *Channel) Receive(ctx context.Context, opts ...ReceiveOption) ([]*Payload, error) {
	if ch.own.MessageReceivingEndpoint == "" || ch.own.InboxOwnerCode == "" {
		return nil, ErrNoInbox
	}

	cfg := &receiveConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	items, err := ch.listInbox(ctx, cfg.longPoll)
	if err != nil {
		return nil, err
	}

	var results []*Payload
	for _, item := range items {
		payload, err := ch.receiveItem(ctx, item)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			continue // notification or blob already expired
		}
		results = append(results, payload)
		if cfg.progress != nil {
			cfg.progress(payload)
		}
	}
	return results, nil
}

// ListInbox returns the raw inbox listing without fetching or decrypting
// any item. Most callers want Receive; this is the escape hatch for
// inspecting pending pointers.
func (ch *Channel) ListInbox(ctx context.Context, longPoll bool) ([]IncomingItem, error) {
	if ch.own.MessageReceivingEndpoint == "" || ch.own.InboxOwnerCode == "" {
		return nil, ErrNoInbox
	}
	items, err := ch.listInbox(ctx, longPoll)
	if err != nil {
		return nil, err
	}
	incoming := make([]IncomingItem, len(items))
	for i, item := range items {
		incoming[i] = IncomingItem{Location: item.Location, ReceivedUTC: item.ReceivedUtc}
	}
	return incoming, nil
}

// listInbox fetches the inbox listing, transparently retrying the
// timeout-style failures a long-poll produces when the relay gives up
// holding the request. A caller-triggered cancellation propagates.
func (ch *Channel) listInbox(ctx context.Context, longPoll bool) ([]relay.Item, error) {
	for {
		items, err := ch.relay.List(ctx, ch.own.MessageReceivingEndpoint, ch.own.InboxOwnerCode, longPoll)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			ch.logger.Debug("inbox listing timed out, retrying", "error", err)
			continue
		}
		return nil, err
	}
}

// receiveItem runs one inbox item through the full inbound pipeline.
// A nil, nil return means the notification vanished at the relay or its
// payload blob vanished at the blob store, and the item was skipped.
func (ch *Channel) receiveItem(ctx context.Context, item relay.Item) (*Payload, error) {
	body, err := ch.relay.GetItem(ctx, item.Location, ch.own.InboxOwnerCode)
	if errors.Is(err, relay.ErrNotFound) {
		ch.logger.Warn("inbox item vanished before retrieval, deleting pointer",
			"location", item.Location)
		ch.deletePointer(ctx, item.Location)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	note, err := ch.openNotification(body, item.Location)
	if err != nil {
		return nil, err
	}

	blob, found, err := ch.fetchBlob(ctx, note.reference.Location)
	if err != nil {
		var invalid *InvalidMessageError
		if errors.As(err, &invalid) {
			invalid.Location = item.Location
		}
		return nil, err
	}
	if !found {
		ch.logger.Warn("payload blob expired at the store, deleting pointer",
			"location", item.Location)
		ch.deletePointer(ctx, item.Location)
		return nil, nil
	}

	if !bytes.Equal(ch.crypto.Hash(blob), note.reference.Hash) {
		return nil, &InvalidMessageError{Reason: ReasonHashMismatch, Location: item.Location}
	}

	plain, err := ch.crypto.SymmetricDecrypt(note.reference.Key, note.reference.IV, blob)
	if err != nil {
		return nil, &InvalidMessageError{Reason: ReasonMalformed, Location: item.Location, Err: err}
	}

	rec, err := wire.ReadPayload(bytes.NewReader(plain), ch.frameCeiling)
	if err != nil {
		return nil, &InvalidMessageError{Reason: ReasonMalformed, Location: item.Location, Err: err}
	}

	return &Payload{
		Content:           rec.Content,
		ContentType:       rec.ContentType,
		ReferenceLocation: item.Location,
	}, nil
}

// openNotification verifies and decrypts a notification wire body.
//
// The order is deliberate: decrypt, then verify the signature over the
// bound region, then check the recipient binding. Nothing decoded from the
// body is trusted before the signature verifies.
func (ch *Channel) openNotification(body []byte, location string) (*notification, error) {
	malformed := func(err error) error {
		return &InvalidMessageError{Reason: ReasonMalformed, Location: location, Err: err}
	}

	r := bytes.NewReader(body)
	encryptedKey, err := wire.ReadSizeAndBuffer(r, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}
	iv, err := wire.ReadSizeAndBuffer(r, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}
	ciphertext, err := wire.ReadSizeAndBuffer(r, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}

	key, err := ch.crypto.Decrypt(ch.own.EncryptionPrivateKey, encryptedKey)
	if err != nil {
		return nil, malformed(err)
	}
	defer crypto.Wipe(key)

	signed, err := ch.crypto.SymmetricDecrypt(key, iv, ciphertext)
	if err != nil {
		return nil, malformed(err)
	}

	sr := bytes.NewReader(signed)
	signature, err := wire.ReadSizeAndBuffer(sr, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}
	bound, err := io.ReadAll(sr)
	if err != nil {
		return nil, malformed(err)
	}

	br := bytes.NewReader(bound)
	declaredRecipient, err := wire.ReadSizeAndBuffer(br, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}
	createdNanos, err := wire.ReadInt64(br)
	if err != nil {
		return nil, malformed(err)
	}
	authorRec, err := wire.ReadEndpoint(br, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}
	refRec, err := wire.ReadPayloadReference(br, ch.frameCeiling)
	if err != nil {
		return nil, malformed(err)
	}

	if err := ch.crypto.Verify(authorRec.SigningPublicKey, bound, signature); err != nil {
		return nil, &InvalidMessageError{Reason: ReasonBadSignature, Location: location, Err: err}
	}

	// The signature covers this binding, so a verified mismatch means the
	// notification was re-posted into the wrong inbox, not corrupted.
	if !bytes.Equal(declaredRecipient, ch.own.SigningPublicKey) {
		return nil, &InvalidMessageError{Reason: ReasonMisdirected, Location: location}
	}

	return &notification{
		author: endpointFromRecord(authorRec),
		reference: &PayloadReference{
			Location:          refRec.Location,
			Hash:              refRec.Hash,
			Key:               refRec.Key,
			IV:                refRec.IV,
			ExpiresUTC:        time.Unix(0, refRec.ExpiresUTC).UTC(),
			ReferenceLocation: location,
		},
		createdAt: time.Unix(0, createdNanos).UTC(),
	}, nil
}

// fetchBlob downloads a payload ciphertext. found is false on a 404: the
// blob store has already expired the item.
func (ch *Channel) fetchBlob(ctx context.Context, location string) (blob []byte, found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := ch.httpClient.Do(req)
	if err != nil {
		return nil, false, &TransportError{URL: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &TransportError{StatusCode: resp.StatusCode, URL: location}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(ch.frameCeiling)+1))
	if err != nil {
		return nil, false, &TransportError{URL: location, Err: err}
	}
	if len(body) > ch.frameCeiling {
		return nil, false, &InvalidMessageError{
			Reason:   ReasonMalformed,
			Location: location,
			Err:      wire.ErrFrameTooLarge,
		}
	}
	return body, true, nil
}

// DeleteInboxItem acknowledges a received payload by deleting its inbox
// pointer. Deleting an already-deleted pointer succeeds.
func (ch *Channel) DeleteInboxItem(ctx context.Context, payload *Payload) error {
	if ch.own.MessageReceivingEndpoint == "" || ch.own.InboxOwnerCode == "" {
		return ErrNoInbox
	}
	if payload == nil || payload.ReferenceLocation == "" {
		return &PreconditionError{Message: "payload has no reference location"}
	}
	return ch.relay.Delete(ctx, ch.own.MessageReceivingEndpoint, ch.own.InboxOwnerCode, payload.ReferenceLocation)
}

// deletePointer removes an inbox pointer on a best-effort basis.
func (ch *Channel) deletePointer(ctx context.Context, location string) {
	err := ch.relay.Delete(ctx, ch.own.MessageReceivingEndpoint, ch.own.InboxOwnerCode, location)
	if err != nil {
		ch.logger.Warn("failed to delete inbox pointer", "location", location, "error", err)
	}
}

// isTimeout reports whether err looks like a transport-level timeout, as
// opposed to a connection failure or an HTTP error status.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne *relay.NetworkError
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
