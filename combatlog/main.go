package main

import (
	"os"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
