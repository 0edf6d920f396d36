package main

import (
	"os"

	"meshvox/cmd/meshvox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
