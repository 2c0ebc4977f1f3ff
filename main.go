package main

import (
	"os"

	"github.com/gordyrad/green-refactor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
