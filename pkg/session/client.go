// Package session implements the client backup and server session
// topologies named in the pipeline orchestrator: hostname exchange,
// mutual FSAS authentication, journal bookkeeping, and metrics, around
// the two-stage pipeline.RunClientBackup / pipeline.RunServerSession
// duplex compositions.
package session

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/forgedbackup/forgedbackup/pkg/flog"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
	"github.com/forgedbackup/forgedbackup/pkg/metrics"
	"github.com/forgedbackup/forgedbackup/pkg/pipeline"
	"github.com/forgedbackup/forgedbackup/pkg/registry"
)

// hostnameFieldSize is the fixed width of the raw, NUL-padded hostname
// the client writes immediately after connecting.
const hostnameFieldSize = 256

// ClientDeps bundles the collaborators a client backup run needs
// beyond the per-server registry entry: its own identity, the
// directory to back up, and the optional journal/metrics sinks.
type ClientDeps struct {
	Hostname    string
	SigningKey  ed25519.PrivateKey
	BackedUpDir string
	Metrics     *metrics.Registry
	Journal     *journal.DB
}

// BackupOne connects to one configured server and runs the full
// client backup topology against it: hostname announce, mutual FSAS,
// then FADC -> FDGSE -> TCP.
func BackupOne(server registry.ServerInfo, deps ClientDeps) error {
	flog.Info.Printf("backup: connecting to %s (%s)", server.Hostname, server.Addr)

	conn, err := net.Dial("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", server.Addr, err)
	}
	defer conn.Close()

	if deps.Metrics != nil {
		deps.Metrics.SessionStarted("client")
	}
	started := time.Now()

	sessionID := uuid.NewString()
	if deps.Journal != nil {
		if err := deps.Journal.Start(sessionID, server.Hostname, journal.DirectionOutbound, "", started); err != nil {
			flog.Warn.Printf("backup: journal start failed: %v", err)
		}
	}

	bytesPlaintext, bytesWire, err := runClientBackup(conn, server, deps)

	status := journal.StatusOK
	detail := ""
	if err != nil {
		status, detail = classifyClientError(err)
	}
	if deps.Journal != nil {
		if jerr := deps.Journal.Finish(sessionID, status, detail, bytesPlaintext, bytesWire, time.Now()); jerr != nil {
			flog.Warn.Printf("backup: journal finish failed: %v", jerr)
		}
	}
	if deps.Metrics != nil {
		deps.Metrics.RecordBytes(bytesPlaintext, bytesWire)
		deps.Metrics.SessionFinished("client", string(status), time.Since(started).Seconds())
	}

	if err != nil {
		return err
	}
	flog.Info.Printf("backup: session with %s finished", server.Hostname)
	return nil
}

func runClientBackup(conn net.Conn, server registry.ServerInfo, deps ClientDeps) (bytesPlaintext, bytesWire int64, err error) {
	if err := announceHostname(conn, deps.Hostname); err != nil {
		return 0, 0, err
	}

	if err := receiveAndAnswer(conn, deps.SigningKey); err != nil {
		return 0, 0, fmt.Errorf("session: prove identity to %s: %w", server.Hostname, err)
	}
	flog.Debug.Printf("backup: proved identity to %s", server.Hostname)

	if err := sendAndVerify(conn, server.VerifyingKey); err != nil {
		return 0, 0, fmt.Errorf("session: verify %s: %w", server.Hostname, err)
	}
	flog.Debug.Printf("backup: verified %s", server.Hostname)

	return pipeline.RunClientBackup(conn, deps.BackedUpDir, server.CipherKey)
}

// announceHostname writes the client's identity as a raw, NUL-padded
// 256-byte field — no length prefix, matching the wire protocol.
func announceHostname(conn net.Conn, hostname string) error {
	field := make([]byte, hostnameFieldSize)
	if len(hostname) > hostnameFieldSize {
		return fmt.Errorf("session: hostname %q exceeds %d bytes", hostname, hostnameFieldSize)
	}
	copy(field, hostname)
	if _, err := conn.Write(field); err != nil {
		return fmt.Errorf("session: announce hostname: %w", err)
	}
	return nil
}
