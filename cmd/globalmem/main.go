// Package main is the entry point for the globalmem CLI.
//
// Usage:
//
//	globalmem [flags] <command> [args]
//
// Commands:
//
//	serve      - Load the device and serve it over a websocket
//	write      - Write bytes at an offset
//	read       - Read bytes at an offset, waiting for a write
//	dump       - Hex dump the buffer without waiting
//	stat       - Show capacity, wait mode and counters
//	dmesg      - Show the kernel log
//	demo       - Run the read/write scenarios in process
//	config     - Configuration management
//	version    - Show version information
package main

import (
	"os"

	"github.com/haivivi/globalmem/cmd/globalmem/commands"
	"github.com/haivivi/globalmem/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
