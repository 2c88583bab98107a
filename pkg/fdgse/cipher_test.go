package fdgse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("backup payload goes here, spanning more than one tag's worth of bytes")

	var ciphertext, decoded bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader(plaintext), &ciphertext, key))
	require.NoError(t, DecipherStream(&ciphertext, &decoded, key))
	require.Equal(t, plaintext, decoded.Bytes())
}

func TestRoundTripEmptyStream(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	var ciphertext, decoded bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader(nil), &ciphertext, key))
	require.Equal(t, 0, ciphertext.Len())
	require.NoError(t, DecipherStream(&ciphertext, &decoded, key))
	require.Equal(t, 0, decoded.Len())
}

func TestRoundTripMultiFrame(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	data := make([]byte, BufferSize*2+500)
	for i := range data {
		data[i] = byte(i % 197)
	}

	var ciphertext, decoded bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader(data), &ciphertext, key))
	require.NoError(t, DecipherStream(&ciphertext, &decoded, key))
	require.Equal(t, data, decoded.Bytes())
}

func TestTamperDetection(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	var ciphertext, decoded bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader([]byte("sensitive bytes")), &ciphertext, key))

	tampered := ciphertext.Bytes()
	tampered[NonceSize+8] ^= 0xFF // flip every bit of the first ciphertext byte

	err = DecipherStream(bytes.NewReader(tampered), &decoded, key)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestWrongKeyFailsAuthentication(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	otherKey, err := GenerateKey()
	require.NoError(t, err)

	var ciphertext, decoded bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader([]byte("hello")), &ciphertext, key))

	err = DecipherStream(&ciphertext, &decoded, otherKey)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNonceUniqueness(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	const frames = 2000
	data := make([]byte, BufferSize*frames)

	var ciphertext bytes.Buffer
	require.NoError(t, CipherStream(bytes.NewReader(data), &ciphertext, key))

	seen := make(map[string]bool, frames)
	buf := ciphertext.Bytes()
	for len(buf) > 0 {
		nonce := string(buf[:NonceSize])
		require.False(t, seen[nonce], "nonce reused")
		seen[nonce] = true
		buf = buf[NonceSize:]

		size := leU64(buf)
		buf = buf[8+size:]
	}
	require.Len(t, seen, frames)
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func TestRoundTripRapid(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(0, 4096).Draw(rt, "size")
		data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(rt, "data")

		var ciphertext, decoded bytes.Buffer
		if err := CipherStream(bytes.NewReader(data), &ciphertext, key); err != nil {
			rt.Fatalf("cipher: %v", err)
		}
		if err := DecipherStream(&ciphertext, &decoded, key); err != nil {
			rt.Fatalf("decipher: %v", err)
		}
		if !bytes.Equal(decoded.Bytes(), data) {
			rt.Fatalf("round trip mismatch")
		}
	})
}
