// Command spellcast runs the ability-cast server and its catalog tooling.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spellcast: %v\n", err)
		os.Exit(1)
	}
}
