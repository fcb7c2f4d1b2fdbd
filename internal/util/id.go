package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 32-hex-char identifier, optionally prefixed.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
