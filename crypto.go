package ironpigeon

import (
	"encoding/base64"

	"github.com/dengbo/ironpigeon/internal/crypto"
)

// CryptoProvider is the cryptographic capability injected into a Channel.
// The default provider uses ML-DSA-65 signatures, ML-KEM-768 hybrid
// asymmetric encryption, AES-256-GCM symmetric encryption, and SHA-256
// hashing; alternative suites can be supplied for interoperability or
// testing.
//
// SymmetricEncrypt must draw a fresh key and IV on every call; keys are
// one-time-per-payload and one-time-per-notification.
type CryptoProvider interface {
	// GenerateSigningKey creates a signing key pair.
	GenerateSigningKey() (publicKey, privateKey []byte, err error)
	// GenerateEncryptionKey creates an asymmetric encryption key pair.
	GenerateEncryptionKey() (publicKey, privateKey []byte, err error)

	// Sign produces a signature over message.
	Sign(message, signingPrivateKey []byte) ([]byte, error)
	// Verify checks a signature over message under signingPublicKey.
	Verify(signingPublicKey, message, signature []byte) error

	// Encrypt encrypts plaintext to the holder of encryptionPublicKey.
	Encrypt(encryptionPublicKey, plaintext []byte) ([]byte, error)
	// Decrypt reverses Encrypt with the matching private key.
	Decrypt(encryptionPrivateKey, ciphertext []byte) ([]byte, error)

	// SymmetricEncrypt encrypts plaintext under a fresh one-time key and IV.
	SymmetricEncrypt(plaintext []byte) (*SymmetricEncryptionResult, error)
	// SymmetricDecrypt reverses SymmetricEncrypt.
	SymmetricDecrypt(key, iv, ciphertext []byte) ([]byte, error)

	// Hash computes the content hash used for blob binding and thumbprints.
	Hash(data []byte) []byte
}

// defaultProvider implements CryptoProvider with the internal suite.
type defaultProvider struct{}

// NewCryptoProvider returns the default cryptographic suite:
// ML-DSA-65 / ML-KEM-768 + HKDF-SHA-512 / AES-256-GCM / SHA-256.
func NewCryptoProvider() CryptoProvider {
	return defaultProvider{}
}

func (defaultProvider) GenerateSigningKey() ([]byte, []byte, error) {
	return crypto.GenerateSigningKey()
}

func (defaultProvider) GenerateEncryptionKey() ([]byte, []byte, error) {
	return crypto.GenerateEncryptionKey()
}

func (defaultProvider) Sign(message, signingPrivateKey []byte) ([]byte, error) {
	return crypto.Sign(message, signingPrivateKey)
}

func (defaultProvider) Verify(signingPublicKey, message, signature []byte) error {
	return crypto.Verify(signingPublicKey, message, signature)
}

func (defaultProvider) Encrypt(encryptionPublicKey, plaintext []byte) ([]byte, error) {
	return crypto.Encrypt(encryptionPublicKey, plaintext)
}

func (defaultProvider) Decrypt(encryptionPrivateKey, ciphertext []byte) ([]byte, error) {
	return crypto.Decrypt(encryptionPrivateKey, ciphertext)
}

func (defaultProvider) SymmetricEncrypt(plaintext []byte) (*SymmetricEncryptionResult, error) {
	key, iv, ciphertext, err := crypto.SymmetricEncrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &SymmetricEncryptionResult{Key: key, IV: iv, Ciphertext: ciphertext}, nil
}

func (defaultProvider) SymmetricDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	return crypto.SymmetricDecrypt(key, iv, ciphertext)
}

func (defaultProvider) Hash(data []byte) []byte {
	return crypto.Hash(data)
}

// Thumbprint returns the URL-safe base64 (no padding) of the hash of a
// signing public key. It is the identity fragment appended to published
// address-book entry URLs.
func Thumbprint(p CryptoProvider, signingPublicKey []byte) string {
	return base64.RawURLEncoding.EncodeToString(p.Hash(signingPublicKey))
}
