// Package main is the entry point for the mtgls CLI and language server.
package main

import (
	"os"

	"github.com/mtgcode/mtgls/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
