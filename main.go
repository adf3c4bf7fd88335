// Package main is the entry point for the CooPad remote gamepad tool.
package main

import (
	"fmt"
	"os"

	"github.com/uozer7050/coopad/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
