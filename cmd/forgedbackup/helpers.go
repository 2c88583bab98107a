package main

import (
	"fmt"
	"os"
	"strings"
)

// openArchiveFile opens an archive file for reading during
// `admin decompress`.
func openArchiveFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("main: open archive %s: %w", path, err)
	}
	return f, nil
}

// listKeyHostnames enumerates the client hostnames a server trusts by
// reading the verifying-keys directory: every {hostname}.pub file
// other than the server's own identity names one client.
func listKeyHostnames(verifyingDir string) ([]string, error) {
	entries, err := os.ReadDir(verifyingDir)
	if err != nil {
		return nil, fmt.Errorf("main: read verifying keys dir: %w", err)
	}
	var hostnames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		hostname := strings.TrimSuffix(e.Name(), ".pub")
		if hostname == ownIdentityName {
			continue
		}
		hostnames = append(hostnames, hostname)
	}
	return hostnames, nil
}
