package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// SymmetricEncrypt encrypts plaintext under a fresh random AES-256 key and
// GCM nonce, returning (key, nonce, ciphertext). Keys are single-use: a new
// key and nonce are drawn for every call.
func SymmetricEncrypt(plaintext []byte) (key, nonce, ciphertext []byte, err error) {
	key = make([]byte, AESKeySize)
	if _, err = rand.Read(key); err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, AESNonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, nil, err
	}

	ciphertext, err = encryptAESGCM(key, nonce, plaintext)
	if err != nil {
		return nil, nil, nil, err
	}
	return key, nonce, ciphertext, nil
}

// SymmetricDecrypt decrypts an AES-256-GCM ciphertext produced by
// SymmetricEncrypt.
func SymmetricDecrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	return decryptAESGCM(key, nonce, ciphertext)
}

// encryptAESGCM seals plaintext with AES-256-GCM.
func encryptAESGCM(key, nonce, plaintext []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// decryptAESGCM opens an AES-256-GCM ciphertext.
func decryptAESGCM(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
