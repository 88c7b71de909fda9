// Command lexstream streams progressive dictionary lookups.
//
// Usage:
//
//	lexstream serve  [-config path] [-addr host:port]
//	lexstream lookup [-config path] [-url base] [-token jwt] [-retry] [-json] <word>
//	lexstream token  [-config path] [-sub subject] [-scope scope] [-ttl 15m]
//	lexstream version
//
// Settings come from config.yml, .env and LEXSTREAM_* variables, for
// example LEXSTREAM_STREAM_GAP_TIMEOUT=10s.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/lexstream/dictionary"
	"github.com/kbukum/lexstream/stream"
)

var errUsage = errors.New("usage: lexstream <serve|lookup|token|version> [flags]")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "lexstream: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return serveCmd(rest, stdout, stderr)
	case "lookup":
		return lookupCmd(rest, stdout, stderr)
	case "token":
		return tokenCmd(rest, stdout, stderr)
	case "version":
		return versionCmd(stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stderr, errUsage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("lexstream "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (default: search standard locations)")
	return fs, configPath
}

// exitCode maps an error to the process exit status: 2 for usage errors,
// 3 for unknown words, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	case stream.RemoteCode(err) == string(dictionary.ErrCodeWordNotFound):
		return 3
	default:
		return 1
	}
}
