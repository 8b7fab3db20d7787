package main

import (
	"fmt"
	"os"

	"github.com/hzleung/readsync/internal/config"
	"github.com/hzleung/readsync/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "sync":
		cfg := config.NewConfig()
		if err := entrypoint.SyncOnce(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "sync-book":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Error: sync-book requires a book ID\n")
			os.Exit(1)
		}
		cfg := config.NewConfig()
		if err := entrypoint.SyncBookOnce(cfg, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve               Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  sync                Run one full WeRead -> Writeathon sync and exit\n")
	fmt.Fprintf(os.Stderr, "  sync-book <id>      Sync a single book by its WeRead ID and exit\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
