// Package main provides the entry point for the contentsync CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/contentsync/cmd/contentsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
