package main

import (
	"os"

	"github.com/cmlabs-hris/attendance-engine/cmd/attendctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
