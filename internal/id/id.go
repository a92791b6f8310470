package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random hex token used as a stored-file identifier.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "file-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
