package pipeline

import (
	"fmt"
	"io"

	"github.com/forgedbackup/forgedbackup/pkg/fadc"
	"github.com/forgedbackup/forgedbackup/pkg/fce"
	"github.com/forgedbackup/forgedbackup/pkg/fdgse"
	"github.com/forgedbackup/forgedbackup/pkg/flog"
)

// runStages starts each of stages concurrently and waits for all of
// them to finish, returning the first non-nil error encountered. The
// producer stage closes its write end on completion, delivering EOF to
// the consumer stage; the consumer stage closes its own end on every
// exit path so that a consumer error unblocks a producer still writing
// into a full ring instead of leaving it stuck in ring.write forever.
func runStages(stages ...func() error) error {
	errs := make(chan error, len(stages))
	for _, stage := range stages {
		stage := stage
		go func() {
			errs <- stage()
		}()
	}

	var first error
	for range stages {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RunClientBackup implements the client backup topology: a directory
// tree is framed by FADC, streamed through a bounded duplex buffer, and
// sealed by FDGSE onto conn. conn is expected to already be
// authenticated (FSAS) and positioned right after the FSAS exchange.
// It returns the plaintext bytes FADC read from
// backedUpDir and the sealed bytes written to conn, for session
// accounting, regardless of whether it also returns an error.
func RunClientBackup(conn io.Writer, backedUpDir string, key fdgse.CipherKey) (bytesPlaintext, bytesWire int64, err error) {
	tx, rx := NewDuplex(DuplexBufferSize)
	plaintextCounter := &countingWriter{w: tx}
	wireCounter := &countingWriter{w: conn}

	logStageStart("client backup")
	err = runStages(
		func() error {
			defer tx.Close()
			if err := fadc.ReadDir(backedUpDir, plaintextCounter); err != nil {
				return fmt.Errorf("pipeline: client directory read: %w", err)
			}
			return nil
		},
		func() error {
			defer rx.Close()
			if err := fdgse.CipherStream(rx, wireCounter, key); err != nil {
				return fmt.Errorf("pipeline: client cipher stream: %w", err)
			}
			return nil
		},
	)
	return plaintextCounter.count, wireCounter.count, err
}

// RunServerSession implements the server session topology: ciphertext
// read from conn is deciphered by FDGSE, streamed through a bounded
// duplex buffer, and block-compressed by FCE into archive. conn is
// expected to already be authenticated; archive is the freshly created
// per-session .lz4 file. It returns the plaintext bytes recovered by
// FDGSE and the wire bytes consumed from conn, for session accounting,
// regardless of whether it also returns an error.
func RunServerSession(conn io.Reader, archive io.Writer, key fdgse.CipherKey) (bytesPlaintext, bytesWire int64, err error) {
	tx, rx := NewDuplex(DuplexBufferSize)
	wireCounter := &countingReader{r: conn}
	plaintextCounter := &countingWriter{w: tx}

	logStageStart("server session")
	err = runStages(
		func() error {
			defer tx.Close()
			if err := fdgse.DecipherStream(wireCounter, plaintextCounter, key); err != nil {
				return fmt.Errorf("pipeline: server decipher stream: %w", err)
			}
			return nil
		},
		func() error {
			defer rx.Close()
			if err := fce.Compress(rx, archive); err != nil {
				return fmt.Errorf("pipeline: server compress stream: %w", err)
			}
			return nil
		},
	)
	return plaintextCounter.count, wireCounter.count, err
}

// RunAdminDecompress implements the offline admin topology: an archive
// file is FCE-decompressed, streamed through a bounded duplex buffer,
// and FADC-decoded into outDir.
func RunAdminDecompress(archive io.Reader, outDir string) error {
	tx, rx := NewDuplex(DuplexBufferSize)

	logStageStart("admin decompress")
	return runStages(
		func() error {
			defer tx.Close()
			if err := fce.Decompress(archive, tx); err != nil {
				return fmt.Errorf("pipeline: admin decompress stream: %w", err)
			}
			return nil
		},
		func() error {
			defer rx.Close()
			if err := fadc.WriteDir(rx, outDir); err != nil {
				return fmt.Errorf("pipeline: admin directory write: %w", err)
			}
			return nil
		},
	)
}

// logStageStart emits a trace line before a topology's stages are spawned.
func logStageStart(label string) {
	flog.Trace.Printf("pipeline: starting %s", label)
}
