// Package fadc implements the Framed Directory Codec: it serializes a
// directory tree into a stream of length-prefixed file entries and
// reconstructs a tree from that stream.
//
// Wire format per entry: path_len(u64 LE) | path | file_size(u64 LE) | payload.
// The stream is a concatenation of zero or more entries terminated by EOF.
package fadc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// BufferSize bounds a single read from a source file and a single write
// into a destination file. It matches the pipeline's BUFFER_SIZE.
const BufferSize = 1 << 15 // 32 KiB

// MaxPathLen is the largest path length this decoder accepts in a single
// entry. A path_len beyond this is a protocol error, not a capacity bug.
const MaxPathLen = 260

// ErrPathTooLong is returned by WriteDir when an entry's path_len exceeds
// MaxPathLen.
var ErrPathTooLong = errors.New("fadc: path exceeds maximum length")

// ErrShortFrame is returned when a read inside an entry (the path, the
// file_size field, or the payload) ends before the entry is complete. An
// EOF at an entry boundary is not this error — it's success.
var ErrShortFrame = errors.New("fadc: short read inside entry")

// ReadDir walks root depth-first and writes one framed entry per regular
// file to w. Subdirectories are recursed into. Symlinks are not followed:
// they are skipped with a warning; other non-regular
// entries (sockets, devices, fifos) are skipped with a warning too.
//
// Ordering within a directory follows the filesystem's own enumeration
// order, which is deterministic per run but not normalized across runs
// or platforms.
func ReadDir(root string, w io.Writer) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("fadc: read dir %s: %w", root, err)
	}
	return crawl(root, entries, w)
}

func crawl(dir string, entries []os.DirEntry, w io.Writer) error {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("fadc: stat %s: %w", path, err)
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			log.Printf("warn: fadc: skipping symlink %s", path)
		case entry.IsDir():
			children, err := os.ReadDir(path)
			if err != nil {
				return fmt.Errorf("fadc: read dir %s: %w", path, err)
			}
			if err := crawl(path, children, w); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := writeEntry(path, info.Size(), w); err != nil {
				return err
			}
		default:
			log.Printf("warn: fadc: skipping non-regular entry %s", path)
		}
	}
	return nil
}

func writeEntry(path string, size int64, w io.Writer) error {
	pathBytes := []byte(path)

	if err := writeU64(w, uint64(len(pathBytes))); err != nil {
		return fmt.Errorf("fadc: write path_len for %s: %w", path, err)
	}
	if _, err := w.Write(pathBytes); err != nil {
		return fmt.Errorf("fadc: write path for %s: %w", path, err)
	}
	if err := writeU64(w, uint64(size)); err != nil {
		return fmt.Errorf("fadc: write file_size for %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fadc: open %s: %w", path, err)
	}
	defer f.Close()

	log.Printf("trace: fadc: sending file %s", path)

	buf := make([]byte, BufferSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("fadc: write payload for %s: %w", path, werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("fadc: read %s: %w", path, err)
		}
	}
	return nil
}

// WriteDir reads a sequence of framed entries from r and materializes
// them as files under outRoot, creating parent directories as needed. A
// clean EOF while reading a path_len prefix ends the stream successfully;
// any other short read is a fatal protocol error.
func WriteDir(r io.Reader, outRoot string) error {
	buf := make([]byte, BufferSize)
	var pathBuf [MaxPathLen]byte

	for {
		pathLen, err := readU64(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: reading path_len: %v", ErrShortFrame, err)
		}

		if pathLen > MaxPathLen {
			return fmt.Errorf("%w: path_len=%d", ErrPathTooLong, pathLen)
		}

		if _, err := io.ReadFull(r, pathBuf[:pathLen]); err != nil {
			return fmt.Errorf("%w: reading path: %v", ErrShortFrame, err)
		}
		relPath := string(pathBuf[:pathLen])

		fileSize, err := readU64(r)
		if err != nil {
			return fmt.Errorf("%w: reading file_size: %v", ErrShortFrame, err)
		}

		target := filepath.Join(outRoot, relPath)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("fadc: mkdir for %s: %w", target, err)
		}

		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("fadc: create %s: %w", target, err)
		}

		writer := bufio.NewWriter(out)
		remaining := fileSize
		for remaining > 0 {
			chunk := uint64(len(buf))
			if remaining < chunk {
				chunk = remaining
			}
			n, rerr := r.Read(buf[:chunk])
			if n > 0 {
				if _, werr := writer.Write(buf[:n]); werr != nil {
					out.Close()
					return fmt.Errorf("fadc: write %s: %w", target, werr)
				}
				remaining -= uint64(n)
			}
			if rerr != nil {
				if remaining > 0 {
					out.Close()
					return fmt.Errorf("%w: reading payload for %s: %v", ErrShortFrame, target, rerr)
				}
			}
		}

		if err := writer.Flush(); err != nil {
			out.Close()
			return fmt.Errorf("fadc: flush %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("fadc: close %s: %w", target, err)
		}

		log.Printf("trace: fadc: wrote file %s", target)
	}
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
