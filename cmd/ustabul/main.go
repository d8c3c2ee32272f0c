package main

import (
	"os"

	"github.com/ustabul/ustabul/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
