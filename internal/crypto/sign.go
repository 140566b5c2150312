package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// Sign produces an ML-DSA-65 signature over message with the given private key.
func Sign(message, privateKey []byte) ([]byte, error) {
	if len(privateKey) != MLDSAPrivateKeySize {
		return nil, ErrInvalidSecretKeySize
	}

	sk := &mldsa65.PrivateKey{}
	if err := sk.UnmarshalBinary(privateKey); err != nil {
		return nil, fmt.Errorf("unmarshal signing key: %w", err)
	}

	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(sk, message, nil, false, sig); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify verifies an ML-DSA-65 signature over message under publicKey.
func Verify(publicKey, message, signature []byte) error {
	pk := &mldsa65.PublicKey{}
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return fmt.Errorf("unmarshal public key: %w", err)
	}

	if !mldsa65.Verify(pk, message, nil, signature) {
		return ErrSignatureVerificationFailed
	}
	return nil
}
