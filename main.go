package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}
