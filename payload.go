package ironpigeon

import "time"

// Payload is the application content exchanged between endpoints.
type Payload struct {
	// Content is the opaque application bytes.
	Content []byte
	// ContentType describes Content (MIME type).
	ContentType string

	// ReferenceLocation is the inbox item URL the payload's notification was
	// fetched from. It is populated by the receiver after decryption and is
	// the handle passed to DeleteInboxItem; it is never on the wire.
	ReferenceLocation string
}

// PayloadReference is the compact pointer that, when decrypted, lets a
// recipient fetch and open a payload blob.
type PayloadReference struct {
	// Location is the absolute URL of the uploaded ciphertext blob.
	Location string
	// Hash is the content hash of the ciphertext blob.
	Hash []byte
	// Key is the one-time symmetric key the blob was encrypted under.
	Key []byte
	// IV is the symmetric initialization vector.
	IV []byte
	// ExpiresUTC is when the blob store may discard the blob.
	ExpiresUTC time.Time

	// ReferenceLocation is populated by the receiver with the inbox URL the
	// enclosing notification was fetched from; it is not part of the wire form.
	ReferenceLocation string
}

// SymmetricEncryptionResult carries the transient output of a one-time
// symmetric encryption: the key and IV appear only inside notifications,
// never alongside the ciphertext.
type SymmetricEncryptionResult struct {
	Key        []byte
	IV         []byte
	Ciphertext []byte
}

// IncomingItem is a relay-provided pointer to a deposited notification.
type IncomingItem struct {
	// Location is the URL from which the notification can be fetched.
	Location string
	// ReceivedUTC is when the relay accepted the notification.
	ReceivedUTC time.Time
}
