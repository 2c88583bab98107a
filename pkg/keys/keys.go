// Package keys loads the per-hostname key material referenced by a
// server or client's PeerRegistry from the directories named in
// config.toml: a signing key seed named {hostname}, a verifying key
// named {hostname}.pub, and a cipher key named {hostname}.aes.
package keys

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
)

// LoadSigning reads {dir}/{hostname} and expands it into an Ed25519
// signing key.
func LoadSigning(dir, hostname string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(filepath.Join(dir, hostname))
	if err != nil {
		return nil, fmt.Errorf("keys: read signing key for %s: %w", hostname, err)
	}
	key, err := fsas.ReadSigningKey(b)
	if err != nil {
		return nil, fmt.Errorf("keys: %s: %w", hostname, err)
	}
	return key, nil
}

// LoadVerifying reads {dir}/{hostname}.pub into an Ed25519 verifying
// key.
func LoadVerifying(dir, hostname string) (ed25519.PublicKey, error) {
	b, err := os.ReadFile(filepath.Join(dir, hostname+".pub"))
	if err != nil {
		return nil, fmt.Errorf("keys: read verifying key for %s: %w", hostname, err)
	}
	key, err := fsas.ReadVerifyingKey(b)
	if err != nil {
		return nil, fmt.Errorf("keys: %s: %w", hostname, err)
	}
	return key, nil
}

// LoadCipher reads {dir}/{hostname}.aes into a 32-byte AES-256 key.
func LoadCipher(dir, hostname string) (fdgse.CipherKey, error) {
	b, err := os.ReadFile(filepath.Join(dir, hostname+".aes"))
	if err != nil {
		return fdgse.CipherKey{}, fmt.Errorf("keys: read cipher key for %s: %w", hostname, err)
	}
	key, err := fdgse.KeyFromBytes(b)
	if err != nil {
		return fdgse.CipherKey{}, fmt.Errorf("keys: %s: %w", hostname, err)
	}
	return key, nil
}

// WriteSigningSeed persists the 32-byte seed backing priv to
// {dir}/{hostname}, matching the original tool's on-disk layout
// (`SigningKey::to_bytes()`, the seed rather than the expanded
// 64-byte form).
func WriteSigningSeed(dir, hostname string, priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("keys: signing key has unexpected length %d", len(priv))
	}
	seed := priv.Seed()
	return writeKeyFile(dir, hostname, seed)
}

// WriteVerifying persists pub to {dir}/{hostname}.pub.
func WriteVerifying(dir, hostname string, pub ed25519.PublicKey) error {
	return writeKeyFile(dir, hostname+".pub", pub)
}

// WriteCipher persists key to {dir}/{hostname}.aes.
func WriteCipher(dir, hostname string, key fdgse.CipherKey) error {
	return writeKeyFile(dir, hostname+".aes", key[:])
}

func writeKeyFile(dir, name string, b []byte) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("keys: create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("keys: write %s: %w", path, err)
	}
	return nil
}
