// Package main provides the manifestkit command.
package main

import (
	"os"

	"github.com/leapstack-labs/manifestkit/internal/cli"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if commit != "" {
		cli.GitCommit = commit
	}
	if date != "" {
		cli.BuildDate = date
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
