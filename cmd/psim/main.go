// Command psim runs one (or, with rep_count > 1, several) discrete-time
// network simulation, driven entirely by configuration (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/faridzandi/psim-go/cmd/psim/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
