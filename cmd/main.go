package main

import (
	"os"

	"github.com/NitrousOX/DRS---projekat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
