// Package main is the entry point for the algfetch command. It lists the
// implementations a configured library can hand out and runs one-shot
// digest, key derivation and random operations through them.
package main

import (
	"fmt"
	"os"

	"github.com/unkn0wn-root/algfetch/cmd/algfetch/internal/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
