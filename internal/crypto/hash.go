package crypto

import "crypto/sha256"

// Hash computes the SHA-256 digest of data.
func Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
