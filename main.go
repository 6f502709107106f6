package main

import (
	"os"

	"github.com/docuchat/docuchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
