// Package fsas implements the mutual Ed25519 challenge/response
// authentication run once per TCP session, right after the hostname
// announcement. Two independent challenges run back-to-back: each side
// both proves its own identity and verifies the other's.
package fsas

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ChallengeLength is the number of random bytes sent as a challenge.
const ChallengeLength = 512

// SignatureLength is the length of an Ed25519 signature.
const SignatureLength = ed25519.SignatureSize

// ErrAuthenticationFailed is returned when a signature fails to verify
// against the expected peer's verifying key.
var ErrAuthenticationFailed = errors.New("fsas: authentication failed")

// ErrWeakKeypair is returned by GenerateKeypair when a freshly minted
// keypair's verifying key turns out to be a weak (low-order) point and
// retrying doesn't produce a strong one within a small bound. This
// should never trigger in practice — it exists to fail loudly rather
// than hand out a keypair an attacker could exploit.
var ErrWeakKeypair = errors.New("fsas: generated keypair is weak")

const maxKeygenAttempts = 8

// GenerateKeypair generates a fresh Ed25519 keypair, rejecting (and
// retrying) any verifying key that turns out to be weak — the corrected
// behavior of the source tool's keygen, which inverted this check and
// aborted on strong keys instead.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	for attempt := 0; attempt < maxKeygenAttempts; attempt++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("fsas: generate keypair: %w", err)
		}
		if !isWeakVerifyingKey(pub) {
			return pub, priv, nil
		}
	}
	return nil, nil, ErrWeakKeypair
}

// lowOrderPoints are Ed25519 encodings of low-order points on the
// curve: the identity (y = 1, and its non-canonical form y = p+1), the
// order-2 point (y = p-1), the order-4 points with y = 0 (and its
// non-canonical form y = p), and the two order-8 y-coordinates, each
// with the sign bit clear. A verifying key encoding to one of these has
// a tiny subgroup and must never be accepted.
var lowOrderPoints = [][32]byte{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0x26, 0xe8, 0x95, 0x8f, 0xc2, 0xb2, 0x27, 0xb0, 0x45, 0xc3, 0xf4, 0x89, 0xf2, 0xef, 0x98, 0xf0, 0xd5, 0xdf, 0xac, 0x05, 0xd3, 0xc6, 0x33, 0x39, 0xb1, 0x38, 0x02, 0x88, 0x6d, 0x53, 0xfc, 0x05},
	{0xc7, 0x17, 0x6a, 0x70, 0x3d, 0x4d, 0xd8, 0x4f, 0xba, 0x3c, 0x0b, 0x76, 0x0d, 0x10, 0x67, 0x0f, 0x2a, 0x20, 0x53, 0xfa, 0x2c, 0x39, 0xcc, 0xc6, 0x4e, 0xc7, 0xfd, 0x77, 0x92, 0xac, 0x03, 0x7a},
	{0xec, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
	{0xed, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
	{0xee, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
}

// isWeakVerifyingKey reports whether pub decodes to the identity point
// or another known low-order point on the curve — points that make the
// keypair unsuitable for signing.
func isWeakVerifyingKey(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return true
	}
	var key [32]byte
	copy(key[:], pub)
	for _, lowOrder := range lowOrderPoints {
		if key == lowOrder {
			return true
		}
	}
	return false
}

// ReadSigningKey loads a 32-byte Ed25519 seed from a key file and
// expands it into a full signing key.
func ReadSigningKey(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("fsas: invalid signing key length %d, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// ReadVerifyingKey validates a 32-byte Ed25519 public key.
func ReadVerifyingKey(b []byte) (ed25519.PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("fsas: invalid verifying key length %d, want %d", len(b), ed25519.PublicKeySize)
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, b)
	return pub, nil
}

// SendAndVerifyChallenge generates a random challenge, writes it to
// conn, reads back a signature, and verifies it under peerVerifyingKey.
// This is the "verify the other side" half of mutual authentication.
func SendAndVerifyChallenge(conn io.ReadWriter, peerVerifyingKey ed25519.PublicKey) error {
	challenge := make([]byte, ChallengeLength)
	if _, err := io.ReadFull(rand.Reader, challenge); err != nil {
		return fmt.Errorf("fsas: generate challenge: %w", err)
	}

	if _, err := conn.Write(challenge); err != nil {
		return fmt.Errorf("fsas: write challenge: %w", err)
	}

	signature := make([]byte, SignatureLength)
	if _, err := io.ReadFull(conn, signature); err != nil {
		return fmt.Errorf("fsas: read signature: %w", err)
	}

	if !ed25519.Verify(peerVerifyingKey, challenge, signature) {
		return ErrAuthenticationFailed
	}
	return nil
}

// ReceiveAndAnswerChallenge reads a challenge from conn, signs it with
// ownSigningKey, and writes back the signature. This is the "prove our
// own identity" half of mutual authentication.
func ReceiveAndAnswerChallenge(conn io.ReadWriter, ownSigningKey ed25519.PrivateKey) error {
	challenge := make([]byte, ChallengeLength)
	if _, err := io.ReadFull(conn, challenge); err != nil {
		return fmt.Errorf("fsas: read challenge: %w", err)
	}

	signature := ed25519.Sign(ownSigningKey, challenge)

	if _, err := conn.Write(signature); err != nil {
		return fmt.Errorf("fsas: write signature: %w", err)
	}
	return nil
}
