package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// ReservedAddress derives a 64-char account address from label. The result
// has the shape of a public key hex but no known private key, so nothing can
// sign transactions from it. Used for custody accounts.
func ReservedAddress(label string) string {
	return Hash([]byte("tolstake/reserved/" + label))
}
