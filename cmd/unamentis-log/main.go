// Command unamentis-log views and analyzes discovery event log files.
//
// Event logs are created by running unamentis-discover with the
// -event-log flag.
//
// Usage:
//
//	unamentis-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View events in human-readable format
//	export   Export events as JSON lines
//	stats    Show per-attempt statistics
//
// Examples:
//
//	# View all events
//	unamentis-log view discovery.cbor
//
//	# View one attempt's validation events
//	unamentis-log view -attempt 7f0c... -category VALIDATION discovery.cbor
//
//	# Export to JSONL for further processing
//	unamentis-log export discovery.cbor > events.jsonl
//
//	# Summarize attempts
//	unamentis-log stats discovery.cbor
package main

import (
	"fmt"
	"os"
)

const usage = `unamentis-log - Discovery Event Log Analyzer

Usage:
  unamentis-log <command> [flags] <file.cbor>

Commands:
  view     View events in human-readable format
  export   Export events as JSON lines
  stats    Show per-attempt statistics

Use "unamentis-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
