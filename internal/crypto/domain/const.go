package domain

// Algorithm names the AEAD construction a DEK is used with.
//
// Both algorithms take 256-bit keys and 96-bit nonces and append a 128-bit tag,
// so ciphertexts and nonces have the same shape regardless of the choice:
//   - AESGCM is the default and is fastest on CPUs with AES-NI
//   - ChaCha20 is preferable on hosts without AES acceleration
type Algorithm string

const (
	// AESGCM is AES-256 in Galois/Counter Mode.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305 (RFC 8439).
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

// DekStatus is the lifecycle state of a DEK.
type DekStatus string

const (
	// DekStatusActive marks the single DEK an owner encrypts new values with.
	DekStatusActive DekStatus = "active"

	// DekStatusRetired marks a rotated DEK. It still decrypts existing versions
	// but is never selected for encryption again.
	DekStatusRetired DekStatus = "retired"
)

const (
	// KeySize is the size in bytes of every KEK and DEK.
	KeySize = 32

	// NonceSize is the AEAD nonce size in bytes for both algorithms.
	NonceSize = 12

	// MaxDekUsages is the hard ceiling on encryptions under one DEK. With random
	// 96-bit nonces the collision probability stays negligible below 2^32 messages,
	// so a DEK reaching it is rotated whatever the configured threshold says.
	MaxDekUsages int64 = 1 << 32
)
