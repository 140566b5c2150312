package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation
	// for domain separation.
	HKDFContext = "ironpigeon:hybrid:v1"

	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = 1184
	// MLKEMSecretKeySize is the size of an ML-KEM-768 secret key in bytes.
	MLKEMSecretKeySize = 2400
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = 1088
	// MLKEMSharedKeySize is the size of the shared secret from ML-KEM-768 in bytes.
	MLKEMSharedKeySize = 32

	// MLDSAPublicKeySize is the size of an ML-DSA-65 public key in bytes.
	MLDSAPublicKeySize = 1952
	// MLDSAPrivateKeySize is the size of an ML-DSA-65 private key in bytes.
	MLDSAPrivateKeySize = 4032
	// MLDSASignatureSize is the size of an ML-DSA-65 signature in bytes.
	MLDSASignatureSize = 3309

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16
)
