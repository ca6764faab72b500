// Package main is the entry point for the ckscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/huangsam/ckscan/cmd"
	"github.com/huangsam/ckscan/internal/iocache"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// run keeps deferred cleanup ahead of os.Exit.
func run() error {
	cmd.SetCacheManager(iocache.Manager)
	defer iocache.CloseStores()
	return cmd.Execute()
}
