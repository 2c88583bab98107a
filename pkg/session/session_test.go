package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
	"github.com/forgedbackup/forgedbackup/pkg/registry"
)

func TestFullClientServerSessionRoundTrip(t *testing.T) {
	clientPub, clientPriv, err := fsas.GenerateKeypair()
	require.NoError(t, err)
	serverPub, serverPriv, err := fsas.GenerateKeypair()
	require.NoError(t, err)
	cipherKey, err := fdgse.GenerateKey()
	require.NoError(t, err)

	backedUpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(backedUpDir, "notes.txt"), []byte("hello from the client"), 0644))

	backupDir := t.TempDir()

	clientConn, serverConn := net.Pipe()

	serverInfo := registry.ServerInfo{
		Hostname:     "vault",
		VerifyingKey: serverPub,
		CipherKey:    cipherKey,
	}
	clientDeps := ClientDeps{
		Hostname:    "laptop",
		SigningKey:  clientPriv,
		BackedUpDir: backedUpDir,
	}

	serverDeps := ServerDeps{
		SigningKey: serverPriv,
		Clients: map[string]registry.ClientInfo{
			"laptop": {
				Hostname:     "laptop",
				VerifyingKey: clientPub,
				CipherKey:    cipherKey,
			},
		},
		BackupDir: backupDir,
	}

	clientErrs := make(chan error, 1)
	go func() {
		_, _, err := runClientBackup(clientConn, serverInfo, clientDeps)
		// BackupOne closes the connection after the pipeline; the server
		// side only finishes once it sees that EOF.
		clientConn.Close()
		clientErrs <- err
	}()

	serverErr := AcceptOne(serverConn, serverDeps)
	require.NoError(t, serverErr)
	require.NoError(t, <-clientErrs)

	hosts, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	require.Equal(t, "laptop", hosts[0].Name())

	archives, err := os.ReadDir(filepath.Join(backupDir, "laptop"))
	require.NoError(t, err)
	require.Len(t, archives, 1)

	info, err := os.Stat(filepath.Join(backupDir, "laptop", archives[0].Name()))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestAcceptOneRejectsUnknownHostname(t *testing.T) {
	_, serverPriv, err := fsas.GenerateKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		field := make([]byte, hostnameFieldSize)
		copy(field, "stranger")
		clientConn.Write(field)
	}()

	err = AcceptOne(serverConn, ServerDeps{
		SigningKey: serverPriv,
		Clients:    map[string]registry.ClientInfo{},
	})
	require.ErrorIs(t, err, ErrUnknownHostname)
}
