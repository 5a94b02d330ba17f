package main

import (
	"os"

	"github.com/ivlev/liveoverlay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
