// Command trackspeed turns CAN bus GPS logs into speed profiles, charts and
// maps, and serves processed tracks over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "process":
		err = runProcess(rest, stdout)
	case "serve":
		err = runServe(ctx, rest, stdout)
	case "migrate":
		err = runMigrate(rest, stdout)
	case "upload":
		err = runUpload(ctx, rest, stdout)
	case "tracks":
		err = runTracks(ctx, rest, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}

	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		monitoring.Logger().WithField("command", command).Error(err)
		fmt.Fprintf(stderr, "trackspeed %s: %v\n", command, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `trackspeed - speed profiles from CAN bus GPS logs

Usage: trackspeed <command> [options]

Commands:
  process    Process a CAN log into speed_data.csv, charts and a track map
  serve      Serve the track upload and query API
  migrate    Manage the track database schema
  upload     Upload a CAN log to a running server
  tracks     List or delete tracks on a running server
  version    Show version information
  help       Show this help message

Examples:
  trackspeed process -in session.csv -out ./graphs -units mph
  trackspeed process -in session.csv -legacy
  trackspeed serve -listen :8080 -db trackspeed.db
  trackspeed migrate status -db trackspeed.db
  trackspeed upload -server http://localhost:8080 -name "Lap 1" session.csv

Run 'trackspeed <command> -h' for command options.
`)
}

// parseInterspersed parses fs over args, allowing flags after positional
// arguments, and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
