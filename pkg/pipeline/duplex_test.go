package pipeline

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDuplexRoundTripSmallWrite(t *testing.T) {
	a, b := NewDuplex(64)

	go func() {
		a.Write([]byte("hello"))
		a.Close()
	}()

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestDuplexBackpressureBlocksWriterUntilDrained(t *testing.T) {
	a, b := NewDuplex(8)

	payload := bytes.Repeat([]byte{0x42}, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n, err := a.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
		a.Close()
	}()

	select {
	case <-done:
		t.Fatal("write of 64 bytes into an 8-byte ring completed without a reader draining it")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	<-done
}

func TestDuplexReadBlocksUntilDataOrClose(t *testing.T) {
	a, b := NewDuplex(16)

	readDone := make(chan struct{})
	var n int
	var err error
	buf := make([]byte, 4)
	go func() {
		defer close(readDone)
		n, err = b.Read(buf)
	}()

	select {
	case <-readDone:
		t.Fatal("read returned before any data was written or the writer closed")
	case <-time.After(30 * time.Millisecond):
	}

	a.Close()
	<-readDone
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestDuplexCloseUnblocksPendingWriteWithClosedPipe(t *testing.T) {
	a, b := NewDuplex(4)

	require.NoError(t, failFastWrite(a, []byte{1, 2, 3, 4}))

	writeDone := make(chan error, 1)
	go func() {
		_, err := a.Write([]byte{5, 6})
		writeDone <- err
	}()

	b.Close()

	select {
	case err := <-writeDone:
		require.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after reader closed")
	}
}

func failFastWrite(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

func TestDuplexIsBidirectional(t *testing.T) {
	a, b := NewDuplex(32)

	go func() {
		a.Write([]byte("ping"))
		reply := make([]byte, 4)
		io.ReadFull(a, reply)
		a.Close()
	}()

	req := make([]byte, 4)
	_, err := io.ReadFull(b, req)
	require.NoError(t, err)
	require.Equal(t, "ping", string(req))

	_, err = b.Write([]byte("pong"))
	require.NoError(t, err)
	b.Close()
}
