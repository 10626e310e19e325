// Command goldengate runs the policy-driven reverse-proxy gateway.
// Grounded on the teacher's cobra+viper dependency pair (the copied
// teacher tree ships no cmd/ package of its own -- OpenEndpoint is a
// library -- so the CLI shape here follows MaxIOFS-MaxIOFS's
// cmd/maxiofs/main.go: a cobra root command with persistent flags and a
// RunE that wires config -> logger -> server, plus signal-driven
// graceful shutdown) and original_source/setup.py's console_scripts
// entry point (one binary, several subcommands) plus
// original_source/goldengate/util.py's generate_credentials (-> the
// gen-creds subcommand).
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
