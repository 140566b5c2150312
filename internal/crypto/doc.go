// Package crypto implements the default ironpigeon cryptographic suite:
// ML-DSA-65 signatures, ML-KEM-768 hybrid asymmetric encryption with
// HKDF-SHA-512 key derivation, AES-256-GCM symmetric encryption, and
// SHA-256 content hashing.
//
// The package exposes plain functions over raw key bytes; the public SDK
// wraps them behind the CryptoProvider capability so alternative suites can
// be injected.
package crypto
