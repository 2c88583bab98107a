package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgedbackup/forgedbackup/pkg/config"
	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
	"github.com/forgedbackup/forgedbackup/pkg/keys"
)

// ownIdentityName is the fixed key filename a server or client uses
// for its own signing/verifying keypair, distinct from the per-peer
// key files named after remote hostnames.
const ownIdentityName = "self"

func initServer(dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("main: create %s: %w", dest, err)
	}

	signingDir := filepath.Join(dest, "keys", "signing")
	verifyingDir := filepath.Join(dest, "keys", "verifying")

	pub, priv, err := fsas.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("main: generate server keypair: %w", err)
	}
	if err := keys.WriteSigningSeed(signingDir, ownIdentityName, priv); err != nil {
		return err
	}
	if err := keys.WriteVerifying(verifyingDir, ownIdentityName, pub); err != nil {
		return err
	}

	cfgPath := filepath.Join(dest, configPath)
	if err := config.WriteDefault(cfgPath, config.ServerTemplate); err != nil {
		return err
	}

	fmt.Printf("server identity written to %s\nconfig written to %s\n", signingDir, cfgPath)
	return nil
}

func initClient(dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("main: create %s: %w", dest, err)
	}

	signingDir := filepath.Join(dest, "keys", "signing")
	verifyingDir := filepath.Join(dest, "keys", "verifying")
	cipherDir := filepath.Join(dest, "keys", "cipher")

	pub, priv, err := fsas.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("main: generate client keypair: %w", err)
	}
	if err := keys.WriteSigningSeed(signingDir, ownIdentityName, priv); err != nil {
		return err
	}
	if err := keys.WriteVerifying(verifyingDir, ownIdentityName, pub); err != nil {
		return err
	}

	cipherKey, err := fdgse.GenerateKey()
	if err != nil {
		return fmt.Errorf("main: generate cipher key: %w", err)
	}
	if err := keys.WriteCipher(cipherDir, ownIdentityName, cipherKey); err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	cfgPath := filepath.Join(dest, configPath)
	if err := config.WriteDefault(cfgPath, fmt.Sprintf(config.ClientTemplate, hostname)); err != nil {
		return err
	}

	fmt.Printf("client identity written under %s\nconfig written to %s\n", filepath.Join(dest, "keys"), cfgPath)
	return nil
}

func loadOwnSigningKey(signingDir, _ string) (ed25519.PrivateKey, error) {
	return keys.LoadSigning(signingDir, ownIdentityName)
}

func loadOwnClientSigningKey(cfg config.ClientConfig) (ed25519.PrivateKey, error) {
	return keys.LoadSigning(cfg.SigningKeysDir, ownIdentityName)
}
