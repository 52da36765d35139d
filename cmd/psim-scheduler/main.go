// Command psim-scheduler runs the offline scheduler (spec.md §4.H) as a
// filter: it reads one JSON input document from stdin and writes one
// JSON output document to stdout (spec.md §6's Scheduler I/O contract),
// so it can be invoked per job batch from a shell pipeline or another
// process without linking the scheduler package directly.
package main

import (
	"fmt"
	"os"

	"github.com/faridzandi/psim-go/internal/scheduler"
)

func main() {
	if err := scheduler.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
