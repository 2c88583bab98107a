// Command forgedbackup is the operator CLI for the backup system:
// server and client lifecycle, and three ways to inspect what has
// already landed on a server (list, decompress, browse, serve).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgedbackup/forgedbackup/pkg/config"
	"github.com/forgedbackup/forgedbackup/pkg/flog"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
	"github.com/forgedbackup/forgedbackup/pkg/metrics"
	"github.com/forgedbackup/forgedbackup/pkg/registry"
	"github.com/forgedbackup/forgedbackup/pkg/session"
)

const configPath = "config.toml"

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	area, verb := os.Args[1], os.Args[2]
	args := os.Args[3:]

	var err error
	switch area {
	case "server":
		err = runServer(verb, args)
	case "client":
		err = runClient(verb, args)
	case "admin":
		err = runAdmin(verb, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		flog.Error.Printf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  forgedbackup server init [dest_dir]
  forgedbackup server start
  forgedbackup client init [dest_dir]
  forgedbackup client start
  forgedbackup admin list
  forgedbackup admin decompress <server> <index> [out_dir]
  forgedbackup admin browse
  forgedbackup admin serve [addr]`)
}

func runServer(verb string, args []string) error {
	switch verb {
	case "init":
		dest := "."
		if len(args) > 0 {
			dest = args[0]
		}
		return initServer(dest)
	case "start":
		return startServer()
	default:
		usage()
		return fmt.Errorf("main: unknown server subcommand %q", verb)
	}
}

func runClient(verb string, args []string) error {
	switch verb {
	case "init":
		dest := "."
		if len(args) > 0 {
			dest = args[0]
		}
		return initClient(dest)
	case "start":
		return startClient()
	default:
		usage()
		return fmt.Errorf("main: unknown client subcommand %q", verb)
	}
}

func startServer() error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	flog.SetLevel(flogLevel(cfg.Logging.Level))

	signingKey, err := loadOwnSigningKey(cfg.SigningKeysDir, cfg.ListeningOn)
	if err != nil {
		return err
	}

	hostnames, err := listKeyHostnames(cfg.VerifyingKeysDir)
	if err != nil {
		return err
	}
	clients, err := registry.LoadServerRegistry(cfg, hostnames)
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)
	if metricsSrv, err := metrics.NewServer(cfg.Metrics.ListenAddr, reg); err == nil && metricsSrv != nil {
		go metricsSrv.Serve(context.Background())
	}

	deps := session.ServerDeps{
		SigningKey: signingKey,
		Clients:    clients,
		BackupDir:  cfg.BackupDir,
		Metrics:    metricsReg,
		Journal:    jrnl,
	}
	return session.ListenAndServe(cfg.ListeningOn, deps)
}

func startClient() error {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}
	flog.SetLevel(flogLevel(cfg.Logging.Level))

	signingKey, err := loadOwnClientSigningKey(cfg)
	if err != nil {
		return err
	}

	servers, err := registry.LoadClientServers(cfg)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return fmt.Errorf("main: no servers configured")
	}

	deps := session.ClientDeps{
		Hostname:    cfg.Hostname,
		SigningKey:  signingKey,
		BackedUpDir: cfg.BackedUpDir,
	}

	var succeeded int
	for _, server := range servers {
		if err := session.BackupOne(server, deps); err != nil {
			flog.Error.Printf("client: backup to %s failed: %v", server.Hostname, err)
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("main: backup failed against every configured server")
	}
	return nil
}

func flogLevel(s string) flog.Level {
	return flog.ParseLevel(s)
}
