package main

import (
	"os"

	"github.com/energyexe/harmonizer/cmd/harmonizer/commands"
)

// main is the entry point for the harmonizer CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
