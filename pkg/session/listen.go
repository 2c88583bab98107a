package session

import (
	"net"

	"github.com/forgedbackup/forgedbackup/pkg/flog"
)

// ListenAndServe binds addr and runs the server accept loop: one
// independent goroutine per accepted connection, fully isolated apart
// from the shared, immutable deps.Clients registry and the filesystem
// namespace partitioned by hostname.
func ListenAndServe(addr string, deps ServerDeps) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	flog.Info.Printf("server: listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := AcceptOne(conn, deps); err != nil {
				flog.Error.Printf("server: session ended with error: %v", err)
			}
		}()
	}
}
