// Package adminweb is the HTTP+WebSocket archive browser,
// `forgedbackup admin serve`: GET /servers.json lists known hostnames
// and their archive counts (the same shape idea as the teacher's
// public discovery endpoint), and GET /ws streams progress events
// while a decompress triggered through the API is running.
package adminweb

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/forgedbackup/forgedbackup/pkg/archive"
	"github.com/forgedbackup/forgedbackup/pkg/flog"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
	"github.com/forgedbackup/forgedbackup/pkg/pipeline"
)

func openForRead(path string) (*os.File, error) {
	return os.Open(path)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type serverSummary struct {
	Hostname   string `json:"hostname"`
	Archives   int    `json:"archives"`
	LastStatus string `json:"last_status,omitempty"`
}

// progressEvent is one line streamed over /ws while a decompress is
// running.
type progressEvent struct {
	Hostname string `json:"hostname"`
	Message  string `json:"message"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type handler struct {
	backupDir string
	jrnl      *journal.DB
}

// ListenAndServe binds addr and serves /servers.json and /ws until the
// listener fails.
func ListenAndServe(addr, backupDir string, jrnl *journal.DB) error {
	h := &handler{backupDir: backupDir, jrnl: jrnl}

	mux := http.NewServeMux()
	mux.HandleFunc("/servers.json", h.serversJSON)
	mux.HandleFunc("/ws", h.ws)

	flog.Info.Printf("adminweb: listening on %s (/servers.json, /ws)", addr)
	return http.ListenAndServe(addr, mux)
}

func (h *handler) serversJSON(w http.ResponseWriter, r *http.Request) {
	hosts, err := archive.ListServers(h.backupDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]serverSummary, 0, len(hosts))
	for _, hostname := range hosts {
		entries, err := archive.List(h.backupDir, hostname)
		if err != nil {
			continue
		}
		summary := serverSummary{Hostname: hostname, Archives: len(entries)}
		if h.jrnl != nil {
			if sessions, err := h.jrnl.ListByHostname(hostname); err == nil && len(sessions) > 0 {
				summary.LastStatus = string(sessions[0].Status)
			}
		}
		summaries = append(summaries, summary)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// ws handles GET /ws?server=<hostname>&index=<n>&out_dir=<dir>,
// triggering a decompress and streaming progress events as JSON text
// frames until it completes or the connection closes.
func (h *handler) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		flog.Warn.Printf("adminweb: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	hostname := r.URL.Query().Get("server")
	if hostname == "" {
		h.sendEvent(conn, progressEvent{Done: true, Error: "missing server query parameter"})
		return
	}
	outDir := r.URL.Query().Get("out_dir")
	if outDir == "" {
		outDir = hostname + "-restored"
	}

	indexStr := r.URL.Query().Get("index")
	entries, err := archive.List(h.backupDir, hostname)
	if err != nil {
		h.sendEvent(conn, progressEvent{Hostname: hostname, Done: true, Error: err.Error()})
		return
	}
	if len(entries) == 0 {
		h.sendEvent(conn, progressEvent{Hostname: hostname, Done: true, Error: "no archives found"})
		return
	}
	index := len(entries) - 1
	if indexStr != "" {
		if _, err := fmt.Sscanf(indexStr, "%d", &index); err != nil || index < 0 || index >= len(entries) {
			h.sendEvent(conn, progressEvent{Hostname: hostname, Done: true, Error: "invalid index"})
			return
		}
	}

	h.sendEvent(conn, progressEvent{Hostname: hostname, Message: fmt.Sprintf("decompressing %s", entries[index].Path)})

	if err := h.runDecompress(entries[index].Path, outDir); err != nil {
		h.sendEvent(conn, progressEvent{Hostname: hostname, Done: true, Error: err.Error()})
		return
	}

	h.sendEvent(conn, progressEvent{Hostname: hostname, Message: fmt.Sprintf("restored to %s", outDir), Done: true})
}

func (h *handler) runDecompress(archivePath, outDir string) error {
	file, err := openForRead(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return pipeline.RunAdminDecompress(file, outDir)
}

func (h *handler) sendEvent(conn *websocket.Conn, evt progressEvent) {
	if err := conn.WriteJSON(evt); err != nil {
		flog.Warn.Printf("adminweb: websocket write failed: %v", err)
	}
}
