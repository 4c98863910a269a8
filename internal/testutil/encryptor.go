package testutil

import (
	"xb-go/internal/encryption"
	"xb-go/internal/xb"
)

// NewTestEncryptor creates a deterministic, keyless encryptor for testing.
func NewTestEncryptor() xb.Encryptor {
	return encryption.NewTestEncryptor()
}
