package fsas

import (
	"crypto/ed25519"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeypairRoundTripsThroughSignVerify(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	require.False(t, isWeakVerifyingKey(pub))

	msg := []byte("challenge material")
	sig := ed25519.Sign(priv, msg)
	require.True(t, ed25519.Verify(pub, msg, sig))
}

func TestIsWeakVerifyingKeyRejectsEveryKnownLowOrderPoint(t *testing.T) {
	for _, point := range lowOrderPoints {
		key := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(key, point[:])
		require.True(t, isWeakVerifyingKey(key))
	}
}

func TestReadSigningAndVerifyingKeyRejectWrongLength(t *testing.T) {
	_, err := ReadSigningKey(make([]byte, 10))
	require.Error(t, err)

	_, err = ReadVerifyingKey(make([]byte, 10))
	require.Error(t, err)
}

func TestMutualChallengeSucceedsWithMatchingKeys(t *testing.T) {
	clientPub, clientPriv, err := GenerateKeypair()
	require.NoError(t, err)
	serverPub, serverPriv, err := GenerateKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverErrs := make(chan error, 2)
	go func() {
		serverErrs <- SendAndVerifyChallenge(serverConn, clientPub)
	}()
	go func() {
		serverErrs <- ReceiveAndAnswerChallenge(serverConn, serverPriv)
	}()

	require.NoError(t, ReceiveAndAnswerChallenge(clientConn, clientPriv))
	require.NoError(t, SendAndVerifyChallenge(clientConn, serverPub))

	require.NoError(t, <-serverErrs)
	require.NoError(t, <-serverErrs)
}

func TestSendAndVerifyChallengeRejectsWrongSigningKey(t *testing.T) {
	_, wrongPriv, err := GenerateKeypair()
	require.NoError(t, err)
	expectedPub, _, err := GenerateKeypair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan error, 1)
	go func() {
		done <- ReceiveAndAnswerChallenge(clientConn, wrongPriv)
	}()

	err = SendAndVerifyChallenge(serverConn, expectedPub)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.NoError(t, <-done)
}
