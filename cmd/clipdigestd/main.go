// Command clipdigestd is the clipdigest daemon: it owns the task queue,
// runs the processing pipeline, and serves the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clipdigestd: %v\n", err)
		os.Exit(1)
	}
}
