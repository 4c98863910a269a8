package encryption

import (
	"fmt"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// NewEncryptorFromConfig returns the configured Encryptor, or nil when
// archives are stored unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (xb.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, &config.ConfigMissingError{Key: "encryption.public_key_path"}
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
