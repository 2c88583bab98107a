package pipeline

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
)

// failingAfterFirstWrite errors on its second Write call, simulating an
// archive write failure partway through a session.
type failingAfterFirstWrite struct {
	writes int
}

var errSimulatedWriteFailure = errors.New("simulated write failure")

func (f *failingAfterFirstWrite) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > 1 {
		return 0, errSimulatedWriteFailure
	}
	return len(p), nil
}

func TestRunServerSessionReturnsPromptlyWhenConsumerFailsMidStream(t *testing.T) {
	key, err := fdgse.GenerateKey()
	require.NoError(t, err)

	// Plaintext well over DuplexBufferSize so the producer is still
	// writing into the ring when the consumer errors out.
	plaintext := bytes.Repeat([]byte{0x7a}, 4*DuplexBufferSize)

	var sealed bytes.Buffer
	require.NoError(t, fdgse.CipherStream(bytes.NewReader(plaintext), &sealed, key))

	archive := &failingAfterFirstWrite{}

	done := make(chan error, 1)
	go func() {
		_, _, err := RunServerSession(bytes.NewReader(sealed.Bytes()), archive, key)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunServerSession hung instead of unwinding after the consumer stage failed")
	}
}

var _ io.Writer = (*failingAfterFirstWrite)(nil)

func TestRunClientAndServerSessionReportByteCounts(t *testing.T) {
	key, err := fdgse.GenerateKey()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello from the client"), 0644))

	var wire bytes.Buffer
	clientPlaintext, clientWire, err := RunClientBackup(&wire, dir, key)
	require.NoError(t, err)
	require.Greater(t, clientPlaintext, int64(0))
	require.Greater(t, clientWire, int64(0))

	var archive bytes.Buffer
	serverPlaintext, serverWire, err := RunServerSession(bytes.NewReader(wire.Bytes()), &archive, key)
	require.NoError(t, err)
	require.Equal(t, clientPlaintext, serverPlaintext)
	require.Equal(t, clientWire, serverWire)
}
