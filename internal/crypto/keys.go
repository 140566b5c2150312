package crypto

import (
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// randReader is the random source used for key generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

// GenerateSigningKey creates a new ML-DSA-65 signing key pair and returns
// the marshaled public and private key bytes.
func GenerateSigningKey() (pub, priv []byte, err error) {
	pk, sk, err := mldsa65.GenerateKey(randReader)
	if err != nil {
		return nil, nil, err
	}

	// MarshalBinary never fails for freshly generated keys.
	pubBytes, _ := pk.MarshalBinary()
	privBytes, _ := sk.MarshalBinary()
	return pubBytes, privBytes, nil
}

// GenerateEncryptionKey creates a new ML-KEM-768 key pair and returns the
// marshaled public and private key bytes.
func GenerateEncryptionKey() (pub, priv []byte, err error) {
	pk, sk, err := mlkem768.GenerateKeyPair(randReader)
	if err != nil {
		return nil, nil, err
	}

	pubBytes, _ := pk.MarshalBinary()
	privBytes, _ := sk.MarshalBinary()
	return pubBytes, privBytes, nil
}
