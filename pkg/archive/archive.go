// Package archive names and lists the on-disk archive files a server
// session produces: {backup_dir}/{hostname}/{unix_secs}.lz4.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Ext is the archive file extension.
const Ext = ".lz4"

// Path returns the archive file path for a session starting at t,
// ensuring the per-hostname directory exists.
func Path(backupDir, hostname string, t time.Time) (string, error) {
	dir := filepath.Join(backupDir, hostname)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, strconv.FormatInt(t.Unix(), 10)+Ext), nil
}

// Entry describes one archive file found under a server's hostname
// directory.
type Entry struct {
	Hostname  string
	Path      string
	Timestamp time.Time
	Size      int64
}

// ListServers returns the name of every subdirectory of backupDir (one
// per hostname), sorted alphabetically.
func ListServers(backupDir string) ([]string, error) {
	dirEntries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("archive: list servers: %w", err)
	}
	var hostnames []string
	for _, de := range dirEntries {
		if de.IsDir() {
			hostnames = append(hostnames, de.Name())
		}
	}
	sort.Strings(hostnames)
	return hostnames, nil
}

// List returns every archive for hostname, sorted by filename
// (timestamp) ascending — stable regardless of directory-iteration
// order, so index N always names the same archive across repeated
// calls.
func List(backupDir, hostname string) ([]Entry, error) {
	dir := filepath.Join(backupDir, hostname)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", hostname, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), Ext) {
			continue
		}
		secsStr := strings.TrimSuffix(de.Name(), Ext)
		secs, err := strconv.ParseInt(secsStr, 10, 64)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Hostname:  hostname,
			Path:      filepath.Join(dir, de.Name()),
			Timestamp: time.Unix(secs, 0),
			Size:      info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// ByIndex returns the archive at the given zero-based index within
// hostname's sorted listing.
func ByIndex(backupDir, hostname string, index int) (Entry, error) {
	entries, err := List(backupDir, hostname)
	if err != nil {
		return Entry{}, err
	}
	if index < 0 || index >= len(entries) {
		return Entry{}, fmt.Errorf("archive: index %d out of range (%d archives for %s)", index, len(entries), hostname)
	}
	return entries[index], nil
}
