package main

import (
	"os"

	"github.com/solatis/cibrule/cmd/cibrule/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
