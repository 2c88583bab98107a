// Package fdgse implements the AEAD Stream Codec: AES-256-GCM encryption
// of a byte stream in independently-sealed, per-frame-nonce frames.
//
// Wire format per frame: nonce(12) | ct_len(u64 LE) | ciphertext‖tag,
// where ct_len = plaintext_len + 16 (the GCM tag). Nonces are drawn
// independently from the OS CSPRNG per frame, never from a counter.
package fdgse

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// BufferSize bounds one plaintext read; one read becomes one frame.
const BufferSize = 1 << 15 // 32 KiB

const (
	// KeySize is the length of an AES-256 key.
	KeySize = 32
	// NonceSize is the length of a GCM nonce.
	NonceSize = 12
	// TagSize is the length of a GCM authentication tag.
	TagSize = 16
)

// CipherKey is a fixed 32-byte per-peer shared secret.
type CipherKey [KeySize]byte

// ErrInvalidKeySize is returned when a key file or byte slice isn't
// exactly KeySize bytes.
var ErrInvalidKeySize = errors.New("fdgse: invalid key size")

// ErrDecryptionFailed wraps a GCM authentication failure — the frame
// was tampered with, or the key doesn't match.
var ErrDecryptionFailed = errors.New("fdgse: decryption failed")

// ErrShortFrame signals a short read in the middle of a frame (a
// partial nonce, ct_len or ciphertext). An EOF before the first nonce
// byte is not this error — it's success.
var ErrShortFrame = errors.New("fdgse: short read inside frame")

// GenerateKey draws a fresh random AES-256 key from the OS CSPRNG.
func GenerateKey() (CipherKey, error) {
	var key CipherKey
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return CipherKey{}, fmt.Errorf("fdgse: generate key: %w", err)
	}
	return key, nil
}

// KeyFromBytes validates and wraps a raw 32-byte key, as loaded from a
// key file on disk.
func KeyFromBytes(b []byte) (CipherKey, error) {
	var key CipherKey
	if len(b) != KeySize {
		return CipherKey{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(b), KeySize)
	}
	copy(key[:], b)
	return key, nil
}

func newAEAD(key CipherKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("fdgse: new aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// CipherStream reads up to BufferSize plaintext bytes at a time from r,
// seals each chunk with a fresh random nonce under key, and writes one
// frame per chunk to w. It terminates successfully on a clean read-side
// EOF.
func CipherStream(r io.Reader, w io.Writer, key CipherKey) error {
	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	buf := make([]byte, BufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := sealFrame(w, aead, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fdgse: read: %w", err)
		}
	}
}

func sealFrame(w io.Writer, aead cipher.AEAD, plaintext []byte) error {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("fdgse: generate nonce: %w", err)
	}
	if _, err := w.Write(nonce); err != nil {
		return fmt.Errorf("fdgse: write nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	if err := writeU64(w, uint64(len(ciphertext))); err != nil {
		return fmt.Errorf("fdgse: write ct_len: %w", err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return fmt.Errorf("fdgse: write ciphertext: %w", err)
	}
	return nil
}

// DecipherStream reads nonce-prefixed, length-prefixed frames from r,
// opens each under key, and writes the plaintext to w. A clean EOF at a
// nonce boundary, or a ct_len of zero, ends the stream successfully.
// Any authentication failure is fatal.
func DecipherStream(r io.Reader, w io.Writer, key CipherKey) error {
	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, NonceSize)
	var ciphertext []byte

	for {
		if _, err := io.ReadFull(r, nonce); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: reading nonce: %v", ErrShortFrame, err)
		}

		size, err := readU64(r)
		if err != nil {
			return fmt.Errorf("%w: reading ct_len: %v", ErrShortFrame, err)
		}
		if size == 0 {
			return nil
		}

		if cap(ciphertext) < int(size) {
			ciphertext = make([]byte, size)
		}
		ciphertext = ciphertext[:size]
		if _, err := io.ReadFull(r, ciphertext); err != nil {
			return fmt.Errorf("%w: reading ciphertext: %v", ErrShortFrame, err)
		}

		plaintext, err := aead.Open(ciphertext[:0], nonce, ciphertext, nil)
		if err != nil {
			return ErrDecryptionFailed
		}

		if _, err := w.Write(plaintext); err != nil {
			return fmt.Errorf("fdgse: write plaintext: %w", err)
		}
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
