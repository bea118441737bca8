// Command mfactl is the operator tool for goMFA deployments: key generation,
// envelope encryption and rotation, backup code hashing, schema migration and
// lockout inspection.
//
// Settings come from -config (TOML) and MFA_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: mfactl [-config file.toml] <command> [flags]

commands:
  keygen    print a random hex master key
  encrypt   read plaintext on stdin, print envelope JSON
  decrypt   read envelope JSON on stdin, print plaintext
  rotate    re-encrypt an envelope from stdin under a new master key
  hash      print the keyed hash of stdin
  migrate   apply the SQL schema for the configured store
  report    print the engine security report as JSON
  lockout   print the lockout status of a principal
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	configPath := ""
	if len(args) >= 2 && args[0] == "-config" {
		configPath, args = args[1], args[2:]
	}
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	app := &app{
		configPath: configPath,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}

	var err error
	switch args[0] {
	case "keygen":
		err = app.keygen(args[1:])
	case "encrypt":
		err = app.encrypt(ctx, args[1:])
	case "decrypt":
		err = app.decrypt(ctx, args[1:])
	case "rotate":
		err = app.rotate(ctx, args[1:])
	case "hash":
		err = app.hash(args[1:])
	case "migrate":
		err = app.migrate(ctx, args[1:])
	case "report":
		err = app.report(ctx, args[1:])
	case "lockout":
		err = app.lockout(ctx, args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "mfactl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}
