package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/idsync/internal/identity/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "idsync: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
