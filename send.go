package ironpigeon

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dengbo/ironpigeon/internal/crypto"
	"github.com/dengbo/ironpigeon/internal/wire"
)

// PostPayload encrypts payload under a fresh one-time key, uploads the
// ciphertext to the blob store with the given expiry, and returns the
// reference that lets a recipient fetch and open it.
//
// expiresUTC must be a UTC timestamp. The key and IV in the returned
// reference appear only inside notifications, never alongside the blob.
func (ch *Channel) PostPayload(ctx context.Context, payload *Payload, expiresUTC time.Time) (*PayloadReference, error) {
	if payload == nil {
		return nil, &PreconditionError{Message: "payload is required"}
	}
	if expiresUTC.Location() != time.UTC {
		return nil, &PreconditionError{Message: "expiry must be a UTC timestamp"}
	}
	if ch.blob == nil {
		return nil, &PreconditionError{Message: "no blob store configured"}
	}

	var plain bytes.Buffer
	err := wire.WritePayload(&plain, &wire.Payload{
		Content:     payload.Content,
		ContentType: payload.ContentType,
	})
	if err != nil {
		return nil, err
	}

	enc, err := ch.crypto.SymmetricEncrypt(plain.Bytes())
	if err != nil {
		return nil, err
	}

	hash := ch.crypto.Hash(enc.Ciphertext)

	location, err := ch.blob.Upload(ctx, enc.Ciphertext, expiresUTC)
	if err != nil {
		return nil, err
	}

	return &PayloadReference{
		Location:   location,
		Hash:       hash,
		Key:        enc.Key,
		IV:         enc.IV,
		ExpiresUTC: expiresUTC,
	}, nil
}

// PostReference fans out one notification per recipient, concurrently and
// independently. If any recipient's post fails the others still run to
// completion and the returned PostError enumerates exactly the failures.
func (ch *Channel) PostReference(ctx context.Context, ref *PayloadReference, recipients []*Endpoint) error {
	if ref == nil {
		return &PreconditionError{Message: "payload reference is required"}
	}
	if len(recipients) == 0 {
		return &PreconditionError{Message: "at least one recipient is required"}
	}
	for _, r := range recipients {
		if r.MessageReceivingEndpoint == "" {
			return &PreconditionError{
				Message: fmt.Sprintf("recipient %s has no inbox", r.Thumbprint(ch.crypto)),
			}
		}
	}

	// Each task derives its own notification ciphertext; nothing mutable is
	// shared across recipients.
	errs := make([]error, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient *Endpoint) {
			defer wg.Done()
			errs[i] = ch.postNotification(ctx, ref, recipient)
		}(i, recipient)
	}
	wg.Wait()

	var failures []*RecipientError
	for i, err := range errs {
		if err != nil {
			failures = append(failures, &RecipientError{Recipient: recipients[i], Err: err})
		}
	}
	if len(failures) > 0 {
		return &PostError{Failures: failures}
	}
	return nil
}

// Post uploads the payload once and notifies every recipient of it.
// It returns the payload reference so the caller can notify further
// recipients later.
func (ch *Channel) Post(ctx context.Context, payload *Payload, recipients []*Endpoint, expiresUTC time.Time) (*PayloadReference, error) {
	ref, err := ch.PostPayload(ctx, payload, expiresUTC)
	if err != nil {
		return nil, err
	}
	if err := ch.PostReference(ctx, ref, recipients); err != nil {
		return nil, err
	}
	return ref, nil
}

// postNotification builds and posts one recipient's notification envelope.
//
// Inside-out: the bound plaintext carries the recipient's signing key (so a
// relay cannot re-target the notification), the creation time, the author's
// public endpoint, and the payload reference. The signature over that region
// is prepended, the whole is encrypted under a fresh symmetric key, and the
// key travels asymmetrically encrypted to the recipient.
func (ch *Channel) postNotification(ctx context.Context, ref *PayloadReference, recipient *Endpoint) error {
	bound, err := ch.buildBoundPlaintext(ref, recipient)
	if err != nil {
		return err
	}

	signature, err := ch.crypto.Sign(bound, ch.own.SigningPrivateKey)
	if err != nil {
		return err
	}

	var signed bytes.Buffer
	if err := wire.WriteSizeAndBuffer(&signed, signature); err != nil {
		return err
	}
	signed.Write(bound)

	enc, err := ch.crypto.SymmetricEncrypt(signed.Bytes())
	if err != nil {
		return err
	}
	defer crypto.Wipe(enc.Key)

	encryptedKey, err := ch.crypto.Encrypt(recipient.EncryptionPublicKey, enc.Key)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	for _, field := range [][]byte{encryptedKey, enc.IV, enc.Ciphertext} {
		if err := wire.WriteSizeAndBuffer(&body, field); err != nil {
			return err
		}
	}

	lifetime := int64(time.Until(ref.ExpiresUTC).Minutes())
	return ch.relay.PostNotification(ctx, recipient.MessageReceivingEndpoint, body.Bytes(), lifetime)
}

// buildBoundPlaintext serializes the signed region of a notification.
func (ch *Channel) buildBoundPlaintext(ref *PayloadReference, recipient *Endpoint) ([]byte, error) {
	var bound bytes.Buffer
	if err := wire.WriteSizeAndBuffer(&bound, recipient.SigningPublicKey); err != nil {
		return nil, err
	}
	if err := wire.WriteInt64(&bound, time.Now().UTC().UnixNano()); err != nil {
		return nil, err
	}
	if err := wire.WriteEndpoint(&bound, endpointRecord(&ch.own.Endpoint)); err != nil {
		return nil, err
	}
	err := wire.WritePayloadReference(&bound, &wire.PayloadReference{
		Location:   ref.Location,
		Hash:       ref.Hash,
		Key:        ref.Key,
		IV:         ref.IV,
		ExpiresUTC: ref.ExpiresUTC.UnixNano(),
	})
	if err != nil {
		return nil, err
	}
	return bound.Bytes(), nil
}
