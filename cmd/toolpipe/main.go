package main

import (
	"os"

	"github.com/toolpipe/toolpipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
