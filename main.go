package main

import (
	"os"

	"github.com/abhisek/smartrepeat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
