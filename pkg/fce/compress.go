// Package fce implements the Block Compression Codec: LZ4 block
// compression layered over an arbitrary byte stream with per-frame
// length prefixes.
//
// Wire format per frame: frame_len(u64 LE) | block, where block is
// uncompressed_size(u32 BE) | marker(1 byte) | payload — the size header
// means the decompressor never needs to guess an output buffer size, and
// the marker distinguishes a real LZ4 block from a literal copy (used
// when a block doesn't compress).
package fce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// BufferSize is the compression granularity: one input read becomes
// exactly one frame.
const BufferSize = 1 << 15 // 32 KiB

// ErrMalformedFrame is returned by Decompress when a frame's declared
// length or embedded size header doesn't match its contents.
var ErrMalformedFrame = errors.New("fce: malformed frame")

// Compress reads up to BufferSize bytes at a time from r, LZ4-compresses
// each chunk independently, and writes a length-prefixed frame per
// chunk to w. One input read is exactly one output frame.
func Compress(r io.Reader, w io.Writer) error {
	in := make([]byte, BufferSize)
	// lz4.CompressBlockBound(BufferSize) bounds worst-case expansion;
	// the 4-byte size header and 1-byte marker are prepended on top.
	out := make([]byte, 5+lz4.CompressBlockBound(BufferSize))

	for {
		n, err := r.Read(in)
		if n > 0 {
			block, berr := compressBlock(in[:n], out)
			if berr != nil {
				return fmt.Errorf("fce: compress block: %w", berr)
			}
			if werr := writeU64(w, uint64(len(block))); werr != nil {
				return fmt.Errorf("fce: write frame_len: %w", werr)
			}
			if _, werr := w.Write(block); werr != nil {
				return fmt.Errorf("fce: write frame: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fce: read: %w", err)
		}
	}
}

// Stored/compressed marker byte, distinguishing a literal copy (used
// when LZ4 can't shrink the block) from a real LZ4 block — the length
// of the body alone can't tell them apart since a compressed block can
// coincidentally match the uncompressed size.
const (
	blockCompressed byte = 0
	blockStored     byte = 1
)

// compressBlock produces the size-prepended form: uncompressed_size(u32
// BE) | marker(1 byte) | block. dst must be at least
// 5+CompressBlockBound(len(src)).
func compressBlock(src, dst []byte) ([]byte, error) {
	binary.BigEndian.PutUint32(dst[:4], uint32(len(src)))
	if len(src) == 0 {
		dst[4] = blockCompressed
		return dst[:5], nil
	}
	n, err := lz4.CompressBlock(src, dst[5:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible: lz4.CompressBlock returns n == 0 rather than
		// an error when the block doesn't shrink. Store it literally.
		dst[4] = blockStored
		copy(dst[5:5+len(src)], src)
		return dst[:5+len(src)], nil
	}
	dst[4] = blockCompressed
	return dst[:5+n], nil
}

// Decompress reads length-prefixed frames from r until a clean EOF at a
// frame boundary, decompresses each, and writes the plaintext to w.
func Decompress(r io.Reader, w io.Writer) error {
	var frame []byte

	for {
		size, err := readU64(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fce: read frame_len: %w", err)
		}

		if cap(frame) < int(size) {
			frame = make([]byte, size)
		}
		frame = frame[:size]
		if _, err := io.ReadFull(r, frame); err != nil {
			return fmt.Errorf("%w: short frame body: %v", ErrMalformedFrame, err)
		}

		decompressed, err := decompressBlock(frame)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if _, err := w.Write(decompressed); err != nil {
			return fmt.Errorf("fce: write: %w", err)
		}
	}
}

func decompressBlock(frame []byte) ([]byte, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("frame shorter than header")
	}
	size := binary.BigEndian.Uint32(frame[:4])
	marker := frame[4]
	body := frame[5:]

	out := make([]byte, size)

	switch marker {
	case blockStored:
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("stored block length %d, expected %d", len(body), size)
		}
		copy(out, body)
		return out, nil
	case blockCompressed:
		if size == 0 {
			return out, nil
		}
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("decompressed %d bytes, expected %d", n, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown block marker %d", marker)
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
