// Package journal is a SQLite-backed audit log of backup sessions,
// grounded on the teacher's database package: WAL mode, a dedicated
// single-connection write handle, and PRAGMA busy_timeout. Unlike the
// teacher's multi-table chat schema, a session here is one row in one
// table. The TUI and the HTTP browser read each server's last session
// status through this package; the CLI's `admin list` does not read the
// journal and reports only what the filesystem shows.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Direction distinguishes a server receiving a backup from a client
// sending one — the same journal schema serves both roles.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status is the terminal outcome of a session, mirroring the error
// taxonomy's session-level kinds.
type Status string

const (
	StatusRunning       Status = "running"
	StatusOK            Status = "ok"
	StatusAuthFailed    Status = "auth_failed"
	StatusDecryptFailed Status = "decrypt_failed"
	StatusProtocolError Status = "protocol_error"
	StatusIOError       Status = "io_error"
)

// Session is one row of the journal: a single backup session's
// identity, timing, and outcome.
type Session struct {
	ID              string
	Hostname        string
	Direction       Direction
	StartedAt       time.Time
	FinishedAt      sql.NullTime
	BytesPlaintext  int64
	BytesWire       int64
	ArchivePath     string
	Status          Status
	ErrorDetail     string
}

// DB wraps the journal's SQLite connection pair.
type DB struct {
	conn      *sql.DB
	writeConn *sql.DB
}

// Open opens (creating if absent) the journal database at path and
// ensures its schema exists.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(4)

	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0)

	for _, c := range []*sql.DB{conn, writeConn} {
		if _, err := c.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			writeConn.Close()
			return nil, fmt.Errorf("journal: enable WAL mode: %w", err)
		}
		if _, err := c.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			conn.Close()
			writeConn.Close()
			return nil, fmt.Errorf("journal: set busy timeout: %w", err)
		}
	}

	db := &DB{conn: conn, writeConn: writeConn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return db, nil
}

// Close closes both connections.
func (db *DB) Close() error {
	db.writeConn.Close()
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS session (
	id TEXT PRIMARY KEY,
	hostname TEXT NOT NULL,
	direction TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	bytes_plaintext INTEGER NOT NULL DEFAULT 0,
	bytes_wire INTEGER NOT NULL DEFAULT 0,
	archive_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_session_hostname ON session(hostname);
CREATE INDEX IF NOT EXISTS idx_session_started_at ON session(started_at);
`
	_, err := db.writeConn.Exec(schema)
	return err
}

// Start inserts a new running session row.
func (db *DB) Start(id, hostname string, direction Direction, archivePath string, startedAt time.Time) error {
	_, err := db.writeConn.Exec(
		`INSERT INTO session (id, hostname, direction, started_at, archive_path, status) VALUES (?, ?, ?, ?, ?, ?)`,
		id, hostname, string(direction), startedAt, archivePath, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("journal: start session: %w", err)
	}
	return nil
}

// Finish records a session's terminal status and byte counters.
func (db *DB) Finish(id string, status Status, errorDetail string, bytesPlaintext, bytesWire int64, finishedAt time.Time) error {
	_, err := db.writeConn.Exec(
		`UPDATE session SET status = ?, error_detail = ?, bytes_plaintext = ?, bytes_wire = ?, finished_at = ? WHERE id = ?`,
		string(status), errorDetail, bytesPlaintext, bytesWire, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("journal: finish session: %w", err)
	}
	return nil
}

// ListByHostname returns sessions for hostname, most recent first.
func (db *DB) ListByHostname(hostname string) ([]Session, error) {
	rows, err := db.conn.Query(
		`SELECT id, hostname, direction, started_at, finished_at, bytes_plaintext, bytes_wire, archive_path, status, error_detail
		 FROM session WHERE hostname = ? ORDER BY started_at DESC`,
		hostname,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions for %s: %w", hostname, err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListAll returns every session, most recent first.
func (db *DB) ListAll() ([]Session, error) {
	rows, err := db.conn.Query(
		`SELECT id, hostname, direction, started_at, finished_at, bytes_plaintext, bytes_wire, archive_path, status, error_detail
		 FROM session ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	var out []Session
	for rows.Next() {
		var s Session
		var direction, status string
		if err := rows.Scan(&s.ID, &s.Hostname, &direction, &s.StartedAt, &s.FinishedAt,
			&s.BytesPlaintext, &s.BytesWire, &s.ArchivePath, &status, &s.ErrorDetail); err != nil {
			return nil, fmt.Errorf("journal: scan session row: %w", err)
		}
		s.Direction = Direction(direction)
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
