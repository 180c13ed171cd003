package main

import (
	"os"

	"github.com/solatis/gridxlate/cmd/gridxlate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
