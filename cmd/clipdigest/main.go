// Command clipdigest is the CLI client for the clipdigest daemon.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clipdigest: %v\n", err)
		os.Exit(1)
	}
}
