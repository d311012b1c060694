package main

import (
	"os"

	"github.com/dgallion1/hl7gest/cmd/hl7/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
