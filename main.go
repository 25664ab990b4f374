package main

import (
	"os"

	"github.com/jandubois/probecheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
