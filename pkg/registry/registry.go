// Package registry loads the immutable peer tables a server and
// client consult during FSAS: the server's hostname -> ClientInfo map
// and the client's list of configured ServerInfo entries. Both are
// built once from config.toml plus the key directories and never
// mutated afterward — sessions only ever read from them.
package registry

import (
	"crypto/ed25519"
	"fmt"

	"github.com/forgedbackup/forgedbackup/pkg/config"
	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/keys"
)

// ClientInfo is everything the server needs to authenticate and
// decrypt one client's sessions.
type ClientInfo struct {
	Hostname     string
	SigningKey   ed25519.PrivateKey
	VerifyingKey ed25519.PublicKey
	CipherKey    fdgse.CipherKey
}

// ServerInfo is everything the client needs to dial and authenticate
// with one configured server.
type ServerInfo struct {
	Hostname     string
	Addr         string
	SigningKey   ed25519.PrivateKey
	VerifyingKey ed25519.PublicKey
	CipherKey    fdgse.CipherKey
}

// LoadServerRegistry builds the server's hostname -> ClientInfo map
// by loading, for each entry of hostnames, its verifying and cipher key
// from cfg's key directories; ClientInfo.SigningKey is left empty. A server's
// own identity is not part of this registry — its own signing key is
// loaded separately and used to answer every client's challenge.
//
// hostnames lists which client identities to load; the server rejects
// any connecting hostname not present here.
func LoadServerRegistry(cfg config.ServerConfig, hostnames []string) (map[string]ClientInfo, error) {
	out := make(map[string]ClientInfo, len(hostnames))
	for _, hostname := range hostnames {
		verifyingKey, err := keys.LoadVerifying(cfg.VerifyingKeysDir, hostname)
		if err != nil {
			return nil, fmt.Errorf("registry: load client %s: %w", hostname, err)
		}
		cipherKey, err := keys.LoadCipher(cfg.CipherKeysDir, hostname)
		if err != nil {
			return nil, fmt.Errorf("registry: load client %s: %w", hostname, err)
		}
		out[hostname] = ClientInfo{
			Hostname:     hostname,
			VerifyingKey: verifyingKey,
			CipherKey:    cipherKey,
		}
	}
	return out, nil
}

// LoadClientServers builds the client's list of configured servers
// from cfg's [servers] table, pairing each with the verifying and
// cipher key that authenticates it.
func LoadClientServers(cfg config.ClientConfig) ([]ServerInfo, error) {
	out := make([]ServerInfo, 0, len(cfg.Servers))
	for hostname, addr := range cfg.Servers {
		verifyingKey, err := keys.LoadVerifying(cfg.VerifyingKeysDir, hostname)
		if err != nil {
			return nil, fmt.Errorf("registry: load server %s: %w", hostname, err)
		}
		cipherKey, err := keys.LoadCipher(cfg.CipherKeysDir, hostname)
		if err != nil {
			return nil, fmt.Errorf("registry: load server %s: %w", hostname, err)
		}
		out = append(out, ServerInfo{
			Hostname:     hostname,
			Addr:         addr,
			VerifyingKey: verifyingKey,
			CipherKey:    cipherKey,
		})
	}
	return out, nil
}
