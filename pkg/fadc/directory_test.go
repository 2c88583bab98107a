package fadc

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeFile(t *testing.T, dir, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func readFile(t *testing.T, dir, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	return data
}

func TestRoundTripSimpleTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.txt", []byte("hello"))
	big := make([]byte, 64*1024)
	_, err := rand.Read(big)
	require.NoError(t, err)
	writeFile(t, src, filepath.Join("sub", "b.bin"), big)

	var buf bytes.Buffer
	require.NoError(t, ReadDir(src, &buf))

	dst := t.TempDir()
	require.NoError(t, WriteDir(&buf, dst))

	require.Equal(t, []byte("hello"), readFile(t, dst, filepath.Join(src, "a.txt")))
	require.Equal(t, big, readFile(t, dst, filepath.Join(src, "sub", "b.bin")))
}

func TestRoundTripEmptyDir(t *testing.T) {
	src := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, ReadDir(src, &buf))
	require.Equal(t, 0, buf.Len())

	dst := t.TempDir()
	require.NoError(t, WriteDir(&buf, dst))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteDirRejectsOversizePath(t *testing.T) {
	var buf bytes.Buffer
	longPath := bytes.Repeat([]byte("x"), MaxPathLen+1)
	require.NoError(t, writeU64(&buf, uint64(len(longPath))))
	buf.Write(longPath)

	dst := t.TempDir()
	err := WriteDir(&buf, dst)
	require.ErrorIs(t, err, ErrPathTooLong)
}

func TestWriteDirFailsOnShortFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU64(&buf, 4))
	buf.WriteString("ab") // short: claimed 4 bytes of path, only 2 present

	dst := t.TempDir()
	err := WriteDir(&buf, dst)
	require.ErrorIs(t, err, ErrShortFrame)
}

// TestEncodeDecodeRoundTripRapid generates random single-level directory
// trees of regular files and checks that encode/decode reproduces every
// file's relative path and contents exactly.
func TestEncodeDecodeRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		src := t.TempDir()

		rawNames := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9_]{1,12}\.dat`), 0, 6).Draw(rt, "names")

		seen := make(map[string]bool, len(rawNames))
		var names []string
		for _, n := range rawNames {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}

		contents := make(map[string][]byte, len(names))
		for _, name := range names {
			size := rapid.IntRange(0, 4096).Draw(rt, "size_"+name)
			data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(rt, "data_"+name)
			contents[name] = data
			writeFile(t, src, name, data)
		}

		var buf bytes.Buffer
		if err := ReadDir(src, &buf); err != nil {
			rt.Fatalf("ReadDir: %v", err)
		}

		dst := t.TempDir()
		if err := WriteDir(&buf, dst); err != nil {
			rt.Fatalf("WriteDir: %v", err)
		}

		for name, want := range contents {
			got, err := os.ReadFile(filepath.Join(dst, src, name))
			if err != nil {
				rt.Fatalf("reading back %s: %v", name, err)
			}
			if !bytes.Equal(got, want) {
				rt.Fatalf("content mismatch for %s", name)
			}
		}
	})
}
