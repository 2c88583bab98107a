package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadServerAppliesDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `listening_on = "127.0.0.1:9735"
backup_dir = "./backups"
`)
	cfg, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9735", cfg.ListeningOn)
	require.Equal(t, "127.0.0.1:9090", cfg.Metrics.ListenAddr)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadServerRejectsEmptyListeningOn(t *testing.T) {
	path := writeConfig(t, `backup_dir = "./backups"
listening_on = ""
`)
	_, err := LoadServer(path)
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadServerEnvOverride(t *testing.T) {
	path := writeConfig(t, `listening_on = "127.0.0.1:9735"
backup_dir = "./backups"
`)
	t.Setenv("FORGEDBACKUP_SERVER_LISTENING_ON", "0.0.0.0:7000")
	cfg, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7000", cfg.ListeningOn)
}

func TestLoadClientRequiresAtLeastOneServer(t *testing.T) {
	path := writeConfig(t, `hostname = "workstation"
`)
	_, err := LoadClient(path)
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadClientParsesServersTable(t *testing.T) {
	path := writeConfig(t, `hostname = "workstation"

[servers]
vault = "backup.example.com:9735"
`)
	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "backup.example.com:9735", cfg.Servers["vault"])
}

func TestParseHostPort(t *testing.T) {
	host, port, err := ParseHostPort("backup.example.com:9735")
	require.NoError(t, err)
	require.Equal(t, "backup.example.com", host)
	require.Equal(t, 9735, port)

	_, _, err = ParseHostPort("missing-port")
	require.ErrorIs(t, err, ErrConfigInvalid)
}
