package keys

import (
	"testing"

	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	const hostname = "vault"

	pub, priv, err := fsas.GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, WriteSigningSeed(dir, hostname, priv))
	require.NoError(t, WriteVerifying(dir, hostname, pub))

	cipherKey, err := fdgse.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, WriteCipher(dir, hostname, cipherKey))

	loadedSigning, err := LoadSigning(dir, hostname)
	require.NoError(t, err)
	require.Equal(t, priv, loadedSigning)

	loadedVerifying, err := LoadVerifying(dir, hostname)
	require.NoError(t, err)
	require.Equal(t, pub, loadedVerifying)

	loadedCipher, err := LoadCipher(dir, hostname)
	require.NoError(t, err)
	require.Equal(t, cipherKey, loadedCipher)
}

func TestLoadMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSigning(dir, "nonexistent")
	require.Error(t, err)
}
