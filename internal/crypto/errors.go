package crypto

import "errors"

// Sentinel errors for errors.Is() checks.
var (
	// ErrDecryptionFailed is returned when an AEAD open fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrSignatureVerificationFailed is returned when a signature does not
	// verify under the presented public key.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrInvalidKeySize is returned when a symmetric key has the wrong length.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when an AES-GCM nonce has the wrong length.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidPublicKeySize is returned when an asymmetric public key has
	// the wrong length.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrInvalidSecretKeySize is returned when an asymmetric secret key has
	// the wrong length.
	ErrInvalidSecretKeySize = errors.New("invalid secret key size")

	// ErrCiphertextTooShort is returned when a hybrid ciphertext is shorter
	// than its fixed-size framing.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)
