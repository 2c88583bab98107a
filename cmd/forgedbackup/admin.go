package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/forgedbackup/forgedbackup/pkg/admintui"
	"github.com/forgedbackup/forgedbackup/pkg/adminweb"
	"github.com/forgedbackup/forgedbackup/pkg/archive"
	"github.com/forgedbackup/forgedbackup/pkg/config"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
	"github.com/forgedbackup/forgedbackup/pkg/pipeline"
)

func runAdmin(verb string, args []string) error {
	switch verb {
	case "list":
		return adminList()
	case "decompress":
		return adminDecompress(args)
	case "browse":
		return adminBrowse()
	case "serve":
		addr := "127.0.0.1:8765"
		if len(args) > 0 {
			addr = args[0]
		}
		return adminServe(addr)
	default:
		usage()
		return fmt.Errorf("main: unknown admin subcommand %q", verb)
	}
}

func adminBackupDir() (string, error) {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return "", err
	}
	return cfg.BackupDir, nil
}

func adminList() error {
	backupDir, err := adminBackupDir()
	if err != nil {
		return err
	}

	hosts, err := archive.ListServers(backupDir)
	if err != nil {
		return err
	}

	for _, hostname := range hosts {
		entries, err := archive.List(backupDir, hostname)
		if err != nil {
			fmt.Printf("%s: %v\n", hostname, err)
			continue
		}
		fmt.Printf("%s (%d archives)\n", hostname, len(entries))
		for i, e := range entries {
			fmt.Printf("  [%d] %s  %s  %s ago\n",
				i, e.Path, humanize.Bytes(uint64(e.Size)), humanize.Time(e.Timestamp))
		}
	}
	return nil
}

func adminDecompress(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("main: usage: admin decompress <server> <index> [out_dir]")
	}
	hostname := args[0]
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("main: invalid index %q: %w", args[1], err)
	}
	outDir := hostname + "-restored"
	if len(args) > 2 {
		outDir = args[2]
	}

	backupDir, err := adminBackupDir()
	if err != nil {
		return err
	}
	entry, err := archive.ByIndex(backupDir, hostname, index)
	if err != nil {
		return err
	}

	file, err := openArchiveFile(entry.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := pipeline.RunAdminDecompress(file, outDir); err != nil {
		return fmt.Errorf("main: decompress %s: %w", entry.Path, err)
	}
	fmt.Printf("restored %s to %s\n", entry.Path, outDir)
	return nil
}

func adminBrowse() error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	return admintui.Run(cfg.BackupDir, jrnl)
}

func adminServe(addr string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	return adminweb.ListenAndServe(addr, cfg.BackupDir, jrnl)
}
