// Package config loads server, client, and admin configuration from a
// TOML file, with FORGEDBACKUP_SECTION_KEY environment variable
// overrides layered on top — the same load-defaults-then-override
// shape as the teacher's server.LoadConfig, repointed at ForgedBackup's
// own keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrConfigInvalid wraps any malformed-TOML or missing-key condition —
// the ConfigError kind from the error taxonomy.
var ErrConfigInvalid = errors.New("config: invalid configuration")

// ServerConfig holds the server's top-level keys plus the optional
// [metrics], [journal] and [logging] tables.
type ServerConfig struct {
	SigningKeysDir   string `toml:"signing_keys_dir"`
	VerifyingKeysDir string `toml:"verifying_keys_dir"`
	CipherKeysDir    string `toml:"cipher_keys_dir"`
	BackupDir        string `toml:"backup_dir"`
	ListeningOn      string `toml:"listening_on"`

	Metrics MetricsSection `toml:"metrics"`
	Journal JournalSection `toml:"journal"`
	Logging LoggingSection `toml:"logging"`
}

// ClientConfig is the client-side mirror: a single hostname identity
// backing up to a table of named servers.
type ClientConfig struct {
	SigningKeysDir   string `toml:"signing_keys_dir"`
	VerifyingKeysDir string `toml:"verifying_keys_dir"`
	CipherKeysDir    string `toml:"cipher_keys_dir"`
	BackedUpDir      string `toml:"backed_up_dir"`
	Hostname         string `toml:"hostname"`

	Servers map[string]string `toml:"servers"`

	Logging LoggingSection `toml:"logging"`
}

// MetricsSection configures the internal-only Prometheus listener.
// An empty ListenAddr disables the listener entirely.
type MetricsSection struct {
	ListenAddr string `toml:"listen_addr"`
}

// JournalSection configures the SQLite audit log location.
type JournalSection struct {
	Path string `toml:"path"`
}

// LoggingSection selects the verbosity threshold: one of
// error/warn/info/debug/trace.
type LoggingSection struct {
	Level string `toml:"level"`
}

// DefaultServerConfig returns the baseline server configuration written
// out by `forgedbackup server init` and used whenever a key is absent
// from the file on disk.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		SigningKeysDir:   "./keys/signing",
		VerifyingKeysDir: "./keys/verifying",
		CipherKeysDir:    "./keys/cipher",
		BackupDir:        "./backups",
		ListeningOn:      "0.0.0.0:9735",
		Metrics:          MetricsSection{ListenAddr: "127.0.0.1:9090"},
		Journal:          JournalSection{Path: "./journal.db"},
		Logging:          LoggingSection{Level: "info"},
	}
}

// DefaultClientConfig returns the baseline client configuration written
// out by `forgedbackup client init`.
func DefaultClientConfig() ClientConfig {
	hostname, _ := os.Hostname()
	return ClientConfig{
		SigningKeysDir:   "./keys/signing",
		VerifyingKeysDir: "./keys/verifying",
		CipherKeysDir:    "./keys/cipher",
		BackedUpDir:      ".",
		Hostname:         hostname,
		Servers:          map[string]string{},
		Logging:          LoggingSection{Level: "info"},
	}
}

// LoadServer reads and decodes a server config file, applying
// FORGEDBACKUP_SERVER_* / FORGEDBACKUP_METRICS_* / FORGEDBACKUP_JOURNAL_*
// environment overrides on top.
func LoadServer(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}

	if v := os.Getenv("FORGEDBACKUP_SERVER_SIGNING_KEYS_DIR"); v != "" {
		cfg.SigningKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_SERVER_VERIFYING_KEYS_DIR"); v != "" {
		cfg.VerifyingKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_SERVER_CIPHER_KEYS_DIR"); v != "" {
		cfg.CipherKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_SERVER_BACKUP_DIR"); v != "" {
		cfg.BackupDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_SERVER_LISTENING_ON"); v != "" {
		cfg.ListeningOn = v
	}
	if v := os.Getenv("FORGEDBACKUP_METRICS_LISTEN_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("FORGEDBACKUP_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("FORGEDBACKUP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := validateServer(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClient reads and decodes a client config file, applying
// FORGEDBACKUP_CLIENT_* overrides on top.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}

	if v := os.Getenv("FORGEDBACKUP_CLIENT_SIGNING_KEYS_DIR"); v != "" {
		cfg.SigningKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_CLIENT_VERIFYING_KEYS_DIR"); v != "" {
		cfg.VerifyingKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_CLIENT_CIPHER_KEYS_DIR"); v != "" {
		cfg.CipherKeysDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_CLIENT_BACKED_UP_DIR"); v != "" {
		cfg.BackedUpDir = v
	}
	if v := os.Getenv("FORGEDBACKUP_CLIENT_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("FORGEDBACKUP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := validateClient(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.ListeningOn == "" {
		return fmt.Errorf("%w: listening_on must not be empty", ErrConfigInvalid)
	}
	if cfg.BackupDir == "" {
		return fmt.Errorf("%w: backup_dir must not be empty", ErrConfigInvalid)
	}
	return nil
}

func validateClient(cfg ClientConfig) error {
	if cfg.Hostname == "" {
		return fmt.Errorf("%w: hostname must not be empty", ErrConfigInvalid)
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("%w: at least one [servers] entry is required", ErrConfigInvalid)
	}
	return nil
}

// WriteDefault writes a fully-commented default config file to path,
// creating parent directories as needed. Used by `*.init` subcommands.
func WriteDefault(path string, body string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// ServerTemplate is the annotated config.toml body written by
// `forgedbackup server init`.
const ServerTemplate = `# forgedbackup server configuration
# Environment variables override these settings:
# FORGEDBACKUP_SECTION_KEY (e.g. FORGEDBACKUP_SERVER_LISTENING_ON=0.0.0.0:9735)

signing_keys_dir = "./keys/signing"
verifying_keys_dir = "./keys/verifying"
cipher_keys_dir = "./keys/cipher"
backup_dir = "./backups"
listening_on = "0.0.0.0:9735"

[metrics]
# empty disables the internal Prometheus listener
listen_addr = "127.0.0.1:9090"

[journal]
path = "./journal.db"

[logging]
level = "info"
`

// ClientTemplate is the annotated config.toml body written by
// `forgedbackup client init`.
const ClientTemplate = `# forgedbackup client configuration

signing_keys_dir = "./keys/signing"
verifying_keys_dir = "./keys/verifying"
cipher_keys_dir = "./keys/cipher"
backed_up_dir = "."
hostname = "%s"

[servers]
# hostname = "address:port"

[logging]
level = "info"
`

// ParseHostPort splits a `[servers]` table value of the form
// host:port, rejecting a value with no colon or a non-numeric port.
func ParseHostPort(addr string) (host string, port int, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("%w: %q is not host:port", ErrConfigInvalid, addr)
	}
	host = addr[:idx]
	port, err = strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q has a non-numeric port: %v", ErrConfigInvalid, addr, err)
	}
	return host, port, nil
}
