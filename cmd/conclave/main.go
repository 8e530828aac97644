package main

import (
	"os"

	"github.com/conclave-dev/conclave/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
