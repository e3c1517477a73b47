package main

import (
	"os"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
