package session

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/forgedbackup/forgedbackup/pkg/archive"
	"github.com/forgedbackup/forgedbackup/pkg/flog"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
	"github.com/forgedbackup/forgedbackup/pkg/metrics"
	"github.com/forgedbackup/forgedbackup/pkg/pipeline"
	"github.com/forgedbackup/forgedbackup/pkg/registry"
)

// ErrUnknownHostname is returned when a connecting client's announced
// hostname has no entry in the server's registry.
var ErrUnknownHostname = fmt.Errorf("session: unknown client hostname")

// ServerDeps bundles the server's own signing identity and the
// registry of trusted clients, plus the archive root and optional
// journal/metrics sinks.
type ServerDeps struct {
	SigningKey ed25519.PrivateKey
	Clients    map[string]registry.ClientInfo
	BackupDir  string
	Metrics    *metrics.Registry
	Journal    *journal.DB
}

// AcceptOne runs the full server session topology against one freshly
// accepted connection: hostname read, registry lookup, mutual FSAS,
// archive creation, then TCP -> FDGSE -> FCE -> file.
func AcceptOne(conn net.Conn, deps ServerDeps) error {
	defer conn.Close()

	hostname, err := readHostname(conn)
	if err != nil {
		return fmt.Errorf("session: read hostname: %w", err)
	}

	client, ok := deps.Clients[hostname]
	if !ok {
		flog.Warn.Printf("server: rejected connection from unknown hostname %q", hostname)
		return fmt.Errorf("%w: %q", ErrUnknownHostname, hostname)
	}
	flog.Debug.Printf("server: accepted connection claiming hostname %s", hostname)

	if deps.Metrics != nil {
		deps.Metrics.SessionStarted("server")
	}
	started := time.Now()
	sessionID := uuid.NewString()

	archivePath, archErr := archive.Path(deps.BackupDir, hostname, started)
	if archErr != nil {
		if deps.Metrics != nil {
			deps.Metrics.SessionFinished("server", string(journal.StatusIOError), time.Since(started).Seconds())
		}
		return fmt.Errorf("session: create archive path: %w", archErr)
	}

	if deps.Journal != nil {
		if err := deps.Journal.Start(sessionID, hostname, journal.DirectionInbound, archivePath, started); err != nil {
			flog.Warn.Printf("server: journal start failed: %v", err)
		}
	}

	bytesPlaintext, bytesWire, err := runServerSession(conn, client, archivePath, deps.SigningKey)

	status := journal.StatusOK
	detail := ""
	if err != nil {
		status, detail = classifyClientError(err)
	}
	if deps.Journal != nil {
		if jerr := deps.Journal.Finish(sessionID, status, detail, bytesPlaintext, bytesWire, time.Now()); jerr != nil {
			flog.Warn.Printf("server: journal finish failed: %v", jerr)
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.RecordBytes(bytesPlaintext, bytesWire)
		deps.Metrics.SessionFinished("server", string(status), time.Since(started).Seconds())
	}

	if err != nil {
		flog.Error.Printf("server: session with %s aborted: %v", hostname, err)
		return err
	}
	flog.Info.Printf("server: session with %s finished, archive %s", hostname, archivePath)
	return nil
}

func runServerSession(conn net.Conn, client registry.ClientInfo, archivePath string, signingKey ed25519.PrivateKey) (bytesPlaintext, bytesWire int64, err error) {
	if err := sendAndVerify(conn, client.VerifyingKey); err != nil {
		return 0, 0, fmt.Errorf("session: verify %s: %w", client.Hostname, err)
	}
	flog.Debug.Printf("server: verified %s", client.Hostname)

	if err := receiveAndAnswer(conn, signingKey); err != nil {
		return 0, 0, fmt.Errorf("session: prove identity to %s: %w", client.Hostname, err)
	}
	flog.Debug.Printf("server: proved identity to %s", client.Hostname)

	file, err := os.Create(archivePath)
	if err != nil {
		return 0, 0, fmt.Errorf("session: create archive file: %w", err)
	}
	defer file.Close()

	return pipeline.RunServerSession(conn, file, client.CipherKey)
}

func readHostname(conn net.Conn) (string, error) {
	field := make([]byte, hostnameFieldSize)
	if _, err := io.ReadFull(conn, field); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(field, "\x00")), nil
}
