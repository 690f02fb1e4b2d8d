package main

import (
	"os"

	"github.com/rustyeddy/fxmirror/cmd/fxmirror/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
