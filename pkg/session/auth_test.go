package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgedbackup/forgedbackup/pkg/fadc"
	"github.com/forgedbackup/forgedbackup/pkg/fce"
	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/fsas"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
)

func TestClassifyClientErrorMapsKnownSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want journal.Status
	}{
		{"auth failure", fmt.Errorf("wrap: %w", fsas.ErrAuthenticationFailed), journal.StatusAuthFailed},
		{"decryption failure", fmt.Errorf("wrap: %w", fdgse.ErrDecryptionFailed), journal.StatusDecryptFailed},
		{"fadc short frame", fmt.Errorf("wrap: %w", fadc.ErrShortFrame), journal.StatusProtocolError},
		{"fadc path too long", fmt.Errorf("wrap: %w", fadc.ErrPathTooLong), journal.StatusProtocolError},
		{"fce malformed frame", fmt.Errorf("wrap: %w", fce.ErrMalformedFrame), journal.StatusProtocolError},
		{"fdgse short frame", fmt.Errorf("wrap: %w", fdgse.ErrShortFrame), journal.StatusProtocolError},
		{"unrecognized error", errors.New("connection reset"), journal.StatusIOError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, detail := classifyClientError(c.err)
			require.Equal(t, c.want, status)
			require.Equal(t, c.err.Error(), detail)
		})
	}
}
