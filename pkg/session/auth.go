package session

import (
	"crypto/ed25519"
	"errors"
	"net"

	"github.com/forgedbackup/forgedbackup/pkg/fadc"
	"github.com/forgedbackup/forgedbackup/pkg/fce"
	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
)

func receiveAndAnswer(conn net.Conn, signingKey ed25519.PrivateKey) error {
	return fsas.ReceiveAndAnswerChallenge(conn, signingKey)
}

func sendAndVerify(conn net.Conn, verifyingKey ed25519.PublicKey) error {
	return fsas.SendAndVerifyChallenge(conn, verifyingKey)
}

// classifyClientError maps a client-side session error onto a journal
// status, matching the error taxonomy: auth failures, decryption
// failures, malformed-wire protocol errors, and everything else
// bucketed as an IO error.
func classifyClientError(err error) (journal.Status, string) {
	switch {
	case errors.Is(err, fsas.ErrAuthenticationFailed):
		return journal.StatusAuthFailed, err.Error()
	case errors.Is(err, fdgse.ErrDecryptionFailed):
		return journal.StatusDecryptFailed, err.Error()
	case errors.Is(err, fadc.ErrShortFrame),
		errors.Is(err, fadc.ErrPathTooLong),
		errors.Is(err, fce.ErrMalformedFrame),
		errors.Is(err, fdgse.ErrShortFrame):
		return journal.StatusProtocolError, err.Error()
	default:
		return journal.StatusIOError, err.Error()
	}
}
