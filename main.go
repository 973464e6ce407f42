package main

import (
	"os"

	"github.com/sparkvibe/sparkvibe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
