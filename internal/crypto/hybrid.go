package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/hkdf"
)

// Encrypt encrypts plaintext to the holder of the ML-KEM-768 key pair whose
// public key is given.
//
// The scheme is KEM-DEM:
//  1. ML-KEM-768 encapsulation produces a shared secret and KEM ciphertext
//  2. HKDF-SHA-512 derives an AES-256 key from the shared secret
//  3. AES-256-GCM encrypts the plaintext with a random nonce
//
// Output layout: kem_ciphertext (1088 bytes) || nonce (12 bytes) || sealed.
func Encrypt(publicKey, plaintext []byte) ([]byte, error) {
	if len(publicKey) != MLKEMPublicKeySize {
		return nil, ErrInvalidPublicKeySize
	}

	var pk mlkem768.PublicKey
	if err := pk.Unpack(publicKey); err != nil {
		return nil, fmt.Errorf("unpack public key: %w", err)
	}

	ctKem := make([]byte, MLKEMCiphertextSize)
	sharedSecret := make([]byte, MLKEMSharedKeySize)
	pk.EncapsulateTo(ctKem, sharedSecret, nil)
	defer Wipe(sharedSecret)

	aesKey, err := deriveKey(sharedSecret, ctKem)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer Wipe(aesKey)

	nonce := make([]byte, AESNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed, err := encryptAESGCM(aesKey, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(ctKem)+len(nonce)+len(sealed))
	out = append(out, ctKem...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt using the ML-KEM-768 secret key.
func Decrypt(secretKey, ciphertext []byte) ([]byte, error) {
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, ErrInvalidSecretKeySize
	}
	if len(ciphertext) < MLKEMCiphertextSize+AESNonceSize+AESTagSize {
		return nil, ErrCiphertextTooShort
	}

	ctKem := ciphertext[:MLKEMCiphertextSize]
	nonce := ciphertext[MLKEMCiphertextSize : MLKEMCiphertextSize+AESNonceSize]
	sealed := ciphertext[MLKEMCiphertextSize+AESNonceSize:]

	var sk mlkem768.PrivateKey
	if err := sk.Unpack(secretKey); err != nil {
		return nil, fmt.Errorf("unpack secret key: %w", err)
	}

	sharedSecret := make([]byte, MLKEMSharedKeySize)
	sk.DecapsulateTo(sharedSecret, ctKem)
	defer Wipe(sharedSecret)

	aesKey, err := deriveKey(sharedSecret, ctKem)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer Wipe(aesKey)

	return decryptAESGCM(aesKey, nonce, sealed)
}

// deriveKey performs HKDF-SHA-512 key derivation for the hybrid scheme.
// The salt is the SHA-256 hash of the KEM ciphertext; the info is the
// package context string.
func deriveKey(sharedSecret, ctKem []byte) ([]byte, error) {
	saltHash := sha256.Sum256(ctKem)

	reader := hkdf.New(sha512.New, sharedSecret, saltHash[:], []byte(HKDFContext))
	key := make([]byte, AESKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
