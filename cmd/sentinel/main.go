// Command sentinel drives the discovery-and-correlation engine: connector
// runs, scan history, engram inspection, and environment checks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
